package gmail

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/ArionMiles/txnsearch/pkg/api"
)

type ruleJSON struct {
	Name              string `json:"name"`
	Query             string `json:"query"`
	AmountRegex       string `json:"amountRegex"`
	MerchantInfoRegex string `json:"merchantInfoRegex"`
	Enabled           *bool  `json:"enabled"`
	Source            string `json:"source"`
}

// ParseRules reads a JSON array of extraction rules and compiles their
// regular expressions.
func ParseRules(data []byte) ([]api.Rule, error) {
	var raw []ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing rules JSON: %w", err)
	}

	rules := make([]api.Rule, 0, len(raw))
	for i, r := range raw {
		rule, err := r.compile()
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r ruleJSON) compile() (api.Rule, error) {
	if r.Query == "" {
		return api.Rule{}, fmt.Errorf("query: expected string")
	}
	if r.Enabled == nil {
		return api.Rule{}, fmt.Errorf("enabled: expected bool")
	}

	amountRegex, err := regexp.Compile(r.AmountRegex)
	if err != nil {
		return api.Rule{}, fmt.Errorf("compiling amountRegex: %w", err)
	}
	merchantRegex, err := regexp.Compile(r.MerchantInfoRegex)
	if err != nil {
		return api.Rule{}, fmt.Errorf("compiling merchantInfoRegex: %w", err)
	}

	return api.Rule{
		Name:         r.Name,
		Query:        r.Query,
		Amount:       amountRegex,
		MerchantInfo: merchantRegex,
		Enabled:      *r.Enabled,
		Source:       r.Source,
	}, nil
}

// ParseLabels reads the merchant to category mapping.
func ParseLabels(data []byte) (api.Labels, error) {
	var labels api.Labels
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("parsing labels JSON: %w", err)
	}
	return labels, nil
}
