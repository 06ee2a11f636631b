package types

import (
	"regexp"
	"strings"
)

// AddedByPipeline marks taxonomy entries created by the discovery pipeline
// rather than loaded from the source intent map.
const AddedByPipeline = "auto_discovery_pipeline"

// TaxonomyEntry is one intent in the working taxonomy: either loaded from the
// source intent map or appended by the discovery pipeline.
type TaxonomyEntry struct {
	// ID is the slugified intent name, stable across runs.
	ID string `json:"id"`

	// Name is the display name ("Primary > Secondary" for nested intents).
	Name string `json:"name"`

	// Description explains the user goal the intent captures.
	Description string `json:"description"`

	// Examples are sample messages expressing the intent.
	Examples []string `json:"examples,omitempty"`

	// AddedBy records provenance; AddedByPipeline for discovered intents,
	// empty for entries loaded from the source intent map.
	AddedBy string `json:"added_by,omitempty"`
}

// Taxonomy is the ordered working collection of intents plus a version marker.
// Mutated only by the taxonomy merger with append/update semantics: an entry,
// once present, is never silently deleted.
type Taxonomy struct {
	// Entries is the ordered intent collection.
	Entries []TaxonomyEntry `json:"entries"`

	// Version increases monotonically with every mutating merge.
	Version int `json:"version"`
}

// Clone returns a deep copy of the taxonomy. The validation harness operates
// on a clone so a harness run never touches the real taxonomy.
func (t *Taxonomy) Clone() *Taxonomy {
	clone := &Taxonomy{
		Entries: make([]TaxonomyEntry, len(t.Entries)),
		Version: t.Version,
	}
	for i, e := range t.Entries {
		clone.Entries[i] = e
		clone.Entries[i].Examples = append([]string(nil), e.Examples...)
	}
	return clone
}

// Find returns a pointer to the entry with the given name (case-insensitive),
// or nil when absent.
func (t *Taxonomy) Find(name string) *TaxonomyEntry {
	for i := range t.Entries {
		if strings.EqualFold(t.Entries[i].Name, name) {
			return &t.Entries[i]
		}
	}
	return nil
}

// Names returns the ordered entry names, used in oracle prompts.
func (t *Taxonomy) Names() []string {
	names := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		names[i] = e.Name
	}
	return names
}

var slugPattern = regexp.MustCompile(`[^a-z0-9\s]`)

// Slugify converts an intent name to a stable ID:
// "Product Safety" -> "product_safety".
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = slugPattern.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "_")
	return s
}
