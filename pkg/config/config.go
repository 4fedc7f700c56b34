// Package config loads typed configuration structs from environment
// variables. Each struct type is parsed once per process and cached, so
// independent components can load the same config without re-reading the
// environment or disagreeing about values.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrNilPointer    = errors.New("config: nil pointer passed to Load")
	ErrParsingConfig = errors.New("config: failed to parse environment")
)

var (
	mu     sync.Mutex
	cache  = make(map[string]any)
	dotenv sync.Once
)

// Load parses environment variables into v based on `env` struct tags. The
// first call for a given type wins; later calls return the cached value.
// A .env file is loaded once per process if present.
//
//	type StripeConfig struct {
//		APIKey string `env:"STRIPE_API_KEY,required"`
//	}
//
//	var cfg StripeConfig
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenv.Do(func() {
		// Missing .env is fine; the environment itself is authoritative.
		_ = godotenv.Load()
	})

	key := typeName[T]()

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache[key] = *v
	return nil
}

// MustLoad is Load that panics on failure. Use for configuration the
// process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

func typeName[T any]() string {
	var zero T
	if t := reflect.TypeOf(zero); t != nil {
		return t.String()
	}
	return fmt.Sprintf("%T", *new(T))
}
