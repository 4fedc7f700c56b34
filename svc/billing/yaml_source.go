package billing

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meridianhq/meridian/pkg/billing"
)

var ErrFailedToLoadPlans = errors.New("billing: failed to load plan catalog")

// YAMLPlansSource loads the plan catalog from a YAML file. The file maps
// plan codes to gateway price ids, e.g.:
//
//	plans:
//	  - code: starter
//	    name: Starter
//	    monthly_price_id: price_starter_monthly
//	    yearly_price_id: price_starter_yearly
//	    seats: 1
//	    public: true
type YAMLPlansSource struct {
	path string
}

func NewYAMLPlansSource(path string) *YAMLPlansSource {
	if path == "" {
		panic("billing: plan catalog path is required")
	}
	return &YAMLPlansSource{path: path}
}

type yamlPlanFile struct {
	Plans []yamlPlan `yaml:"plans"`
}

type yamlPlan struct {
	Code           string `yaml:"code"`
	Name           string `yaml:"name"`
	MonthlyPriceID string `yaml:"monthly_price_id"`
	YearlyPriceID  string `yaml:"yearly_price_id"`
	Seats          int    `yaml:"seats"`
	Public         bool   `yaml:"public"`
}

func (s *YAMLPlansSource) Load(_ context.Context) (map[string]billing.Plan, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	var file yamlPlanFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if len(file.Plans) == 0 {
		return nil, errors.Join(ErrFailedToLoadPlans, errors.New("no plans defined"))
	}

	plans := make(map[string]billing.Plan, len(file.Plans))
	for _, p := range file.Plans {
		if p.Code == "" {
			return nil, errors.Join(ErrFailedToLoadPlans, errors.New("plan without code"))
		}
		if _, exists := plans[p.Code]; exists {
			return nil, errors.Join(ErrFailedToLoadPlans, fmt.Errorf("duplicate plan code %q", p.Code))
		}
		plans[p.Code] = billing.Plan{
			Code:           p.Code,
			Name:           p.Name,
			MonthlyPriceID: p.MonthlyPriceID,
			YearlyPriceID:  p.YearlyPriceID,
			Seats:          p.Seats,
			Public:         p.Public,
		}
	}
	return plans, nil
}
