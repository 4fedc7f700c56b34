package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/pkg/logger"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	return record
}

func TestNewDefaultsToJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))
	log.Info("hello", slog.String("k", "v"))

	record := logLine(t, &buf)
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "v", record["k"])
}

func TestNewInfoLevelByDefault(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))
	log.Debug("suppressed")
	assert.Zero(t, buf.Len())
}

func TestWithLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))
	log.Info("suppressed")
	assert.Zero(t, buf.Len())
	log.Warn("emitted")
	assert.NotZero(t, buf.Len())
}

func TestWithFormatText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithFormat(logger.FormatText))
	log.Info("hello")
	assert.True(t, strings.Contains(buf.String(), "msg=hello"))
}

func TestWithFormatInvalidPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		logger.New(logger.WithFormat(logger.Format("xml")))
	})
}

func TestWithService(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithService("billing"))
	log.Info("hello")

	record := logLine(t, &buf)
	assert.Equal(t, "billing", record["service"])
}

func TestWithDevelopment(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithDevelopment())
	log.Debug("visible")
	assert.True(t, strings.Contains(buf.String(), "msg=visible"))
}

func TestAttrHelpers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))
	log.Info("reconciled",
		logger.EventID("evt_1"),
		logger.EventType("checkout.session.completed"),
		logger.SubscriptionID("sub_1"),
		logger.ReferenceID("ref_1"),
		logger.Component("dispatcher"),
	)

	record := logLine(t, &buf)
	assert.Equal(t, "evt_1", record["event_id"])
	assert.Equal(t, "checkout.session.completed", record["event_type"])
	assert.Equal(t, "sub_1", record["subscription_id"])
	assert.Equal(t, "ref_1", record["reference_id"])
	assert.Equal(t, "dispatcher", record["component"])
}

func TestErrorAttr(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))
	log.Info("failed", logger.Error(assert.AnError))

	record := logLine(t, &buf)
	assert.Equal(t, assert.AnError.Error(), record["error"])

	// Nil errors produce no attribute.
	buf.Reset()
	log.Info("ok", logger.Error(nil))
	record = logLine(t, &buf)
	_, present := record["error"]
	assert.False(t, present)
}

type ctxKey struct{}

func TestWithContextExtractors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
			if v, ok := ctx.Value(ctxKey{}).(string); ok {
				return slog.String("request_id", v), true
			}
			return slog.Attr{}, false
		}),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	log.InfoContext(ctx, "hello")

	record := logLine(t, &buf)
	assert.Equal(t, "req-1", record["request_id"])

	// Without the value the attribute is simply absent.
	buf.Reset()
	log.InfoContext(context.Background(), "hello")
	record = logLine(t, &buf)
	_, present := record["request_id"]
	assert.False(t, present)
}
