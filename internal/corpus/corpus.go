// Package corpus loads and preprocesses the discovery inputs: the cleaned
// customer-message corpus and the existing intent map. Cleaning, merging, and
// anonymization happen upstream; this package only shapes the data for the
// engine.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/scrypster/intentgap/pkg/types"
)

// ErrEmptyCorpus is returned when the input file contains no messages.
// The pipeline fails fast on this before any clustering.
var ErrEmptyCorpus = errors.New("corpus contains no messages")

// inputFile mirrors the source JSON layout: customer messages plus the
// nested intent map.
type inputFile struct {
	CustomerMessages []rawMessage `json:"customer_messages"`
	IntentMapper     []rawPrimary `json:"intent_mapper"`
}

type rawMessage struct {
	ID             string `json:"id"`
	History        string `json:"history"`
	CurrentMessage string `json:"current_human_message"`
	Intent         string `json:"intent,omitempty"`
}

type rawPrimary struct {
	PrimaryIntentID   string         `json:"primary_intent_id"`
	PrimaryIntentName string         `json:"primary_intent_name"`
	SecondaryIntents  []rawSecondary `json:"secondary_intents"`
}

type rawSecondary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
	AddedBy     string   `json:"added_by,omitempty"`
}

// Load reads a corpus file and returns the preprocessed messages and the
// existing taxonomy. An empty or unreadable corpus is an input error.
func Load(path string) ([]types.Message, *types.Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("corpus: %w", err)
	}
	return Parse(data)
}

// Parse decodes corpus JSON. Each message's history and current text are
// merged into a single "Context: ... New Message: ..." string so embedding
// sees conversational references.
func Parse(data []byte) ([]types.Message, *types.Taxonomy, error) {
	var input inputFile
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, nil, fmt.Errorf("corpus: failed to parse input JSON: %w", err)
	}

	if len(input.CustomerMessages) == 0 {
		return nil, nil, ErrEmptyCorpus
	}

	messages := make([]types.Message, 0, len(input.CustomerMessages))
	for i, raw := range input.CustomerMessages {
		id := raw.ID
		if id == "" {
			id = fmt.Sprintf("msg-%d", i)
		}
		messages = append(messages, types.Message{
			ID:     id,
			Text:   FullText(raw.History, raw.CurrentMessage),
			Intent: raw.Intent,
		})
	}

	return messages, flattenTaxonomy(input.IntentMapper), nil
}

// FullText merges conversation history and the current message into the
// canonical embedding input form.
func FullText(history, current string) string {
	return fmt.Sprintf("Context: %s \n New Message: %s", history, current)
}

// flattenTaxonomy converts the nested primary/secondary intent map into the
// ordered working taxonomy, naming entries "Primary > Secondary".
func flattenTaxonomy(primaries []rawPrimary) *types.Taxonomy {
	tax := &types.Taxonomy{Version: 1}
	for _, p := range primaries {
		for _, s := range p.SecondaryIntents {
			name := fmt.Sprintf("%s > %s", p.PrimaryIntentName, s.Name)
			id := s.ID
			if id == "" {
				id = types.Slugify(name)
			}
			tax.Entries = append(tax.Entries, types.TaxonomyEntry{
				ID:          id,
				Name:        name,
				Description: s.Description,
				Examples:    append([]string(nil), s.Examples...),
				AddedBy:     s.AddedBy,
			})
		}
	}
	return tax
}

// FlattenIntentMap renders the taxonomy as the flat text reference fed to the
// oracle prompt, one "- [Name]: description" line per intent.
func FlattenIntentMap(tax *types.Taxonomy) string {
	var sb strings.Builder
	for _, e := range tax.Entries {
		sb.WriteString(fmt.Sprintf("- [%s]: %s\n", e.Name, e.Description))
	}
	return sb.String()
}

// ExportIntentMap renders the working taxonomy back into the nested source
// JSON layout, splitting "Primary > Secondary" names. Entries without a
// primary group land under "General".
func ExportIntentMap(tax *types.Taxonomy) ([]byte, error) {
	byPrimary := make(map[string]*rawPrimary)
	var order []string

	for _, e := range tax.Entries {
		primary, secondary := splitIntentName(e.Name)
		group, ok := byPrimary[primary]
		if !ok {
			group = &rawPrimary{
				PrimaryIntentID:   types.Slugify(primary),
				PrimaryIntentName: primary,
			}
			byPrimary[primary] = group
			order = append(order, primary)
		}
		group.SecondaryIntents = append(group.SecondaryIntents, rawSecondary{
			ID:          e.ID,
			Name:        secondary,
			Description: e.Description,
			Examples:    e.Examples,
			AddedBy:     e.AddedBy,
		})
	}

	out := struct {
		IntentMapper []rawPrimary `json:"intent_mapper"`
	}{}
	for _, name := range order {
		out.IntentMapper = append(out.IntentMapper, *byPrimary[name])
	}
	return json.MarshalIndent(out, "", "  ")
}

func splitIntentName(name string) (primary, secondary string) {
	if idx := strings.Index(name, " > "); idx >= 0 {
		return strings.TrimSpace(name[:idx]), strings.TrimSpace(name[idx+3:])
	}
	return "General", name
}
