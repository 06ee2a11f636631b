package corpus

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/intentgap/pkg/types"
)

// InjectionSet is a labeled batch of synthetic messages that represent one
// known-novel intent. The validation harness injects these into a baseline
// corpus and checks whether clustering recovers them.
type InjectionSet struct {
	IntentName string   `yaml:"intent_name"`
	Messages   []string `yaml:"messages"`
}

// DefaultInjectionSet returns the built-in needle set: a Partnership / B2B
// intent that no consumer-support taxonomy ships with.
func DefaultInjectionSet() InjectionSet {
	return InjectionSet{
		IntentName: "Partnership / B2B Inquiry",
		Messages: []string{
			"I want to partner with your brand for a sponsorship",
			"Do you offer franchise options?",
			"I am an influencer looking for a collaboration",
			"Who can I contact for business partnership?",
			"We are a logistics company wanting to work with you",
			"B2B collaboration request",
			"I want to sell your products in my shop",
			"Marketing tie-up proposal",
			"Corporate bulk orders for employees",
			"Affiliate marketing program details please",
			"Do you have a reseller program?",
			"I want to be a distributor",
			"Looking for vendor registration",
			"Partnership opportunity",
			"Can we collaborate on Instagram?",
			"Business query regarding distribution",
			"Sales team contact for bulk purchase",
			"I want to list my products on your site",
			"Sponsorship for college fest",
			"Collab request",
		},
	}
}

// LoadInjectionSet reads a custom injection set from a YAML file. An empty
// path returns the built-in default set.
func LoadInjectionSet(path string) (InjectionSet, error) {
	if path == "" {
		return DefaultInjectionSet(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return InjectionSet{}, fmt.Errorf("injection set: %w", err)
	}

	var set InjectionSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return InjectionSet{}, fmt.Errorf("injection set: failed to parse YAML: %w", err)
	}
	if set.IntentName == "" {
		return InjectionSet{}, fmt.Errorf("injection set: intent_name is required")
	}
	if len(set.Messages) == 0 {
		return InjectionSet{}, fmt.Errorf("injection set: at least one message is required")
	}
	return set, nil
}

// ToMessages converts the set into injected corpus messages. The synthetic
// messages carry no conversation history.
func (s InjectionSet) ToMessages() []types.Message {
	out := make([]types.Message, 0, len(s.Messages))
	for i, msg := range s.Messages {
		out = append(out, types.Message{
			ID:       fmt.Sprintf("injected-%d", i),
			Text:     FullText("", msg),
			Intent:   s.IntentName,
			Injected: true,
		})
	}
	return out
}
