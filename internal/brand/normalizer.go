package brand

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Unknown is the canonical key returned for empty brand strings.
const Unknown = "unknown"

// Alias maps one canonical brand key to its known spelling variants.
// Table order is a curated priority: the first matching entry wins.
type Alias struct {
	Canonical string   `json:"canonical"`
	Variants  []string `json:"variants"`
}

// Normalizer canonicalizes free-text brand strings against an immutable
// alias table. It is safe for concurrent use; the table is never mutated
// after construction.
type Normalizer struct {
	aliases []Alias
}

// DefaultAliases covers the tracked skincare brands and the spelling
// variants observed across storefronts.
func DefaultAliases() []Alias {
	return []Alias{
		{Canonical: "dermalogica", Variants: []string{"dermalogica"}},
		{Canonical: "skinceuticals", Variants: []string{"skinceuticals", "skin ceuticals"}},
		{Canonical: "drunk elephant", Variants: []string{"drunk elephant", "drunkelephant"}},
		{Canonical: "paula's choice", Variants: []string{"paula's choice", "paulas choice", "paula choice"}},
		{Canonical: "the ordinary", Variants: []string{"the ordinary", "ordinary"}},
		{Canonical: "murad", Variants: []string{"murad"}},
		{Canonical: "dr. dennis gross", Variants: []string{"dr. dennis gross", "dr dennis gross", "dennis gross"}},
		{Canonical: "clinique", Variants: []string{"clinique"}},
	}
}

// New creates a Normalizer from an alias table. A nil or empty table
// falls back to DefaultAliases.
func New(aliases []Alias) *Normalizer {
	if len(aliases) == 0 {
		aliases = DefaultAliases()
	}
	return &Normalizer{aliases: aliases}
}

// LoadAliases reads an alias table from a JSON file. The file holds an
// array so declaration order survives the round trip.
func LoadAliases(path string) ([]Alias, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}

	var aliases []Alias
	if err := json.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("failed to parse alias file %s: %w", path, err)
	}

	return aliases, nil
}

// Normalize returns the canonical key for a raw brand string. Matching is
// case-insensitive containment in both directions; unmatched input
// degrades to its lower-cased trimmed form, empty input to Unknown.
func (n *Normalizer) Normalize(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return Unknown
	}

	for _, entry := range n.aliases {
		for _, variant := range entry.Variants {
			v := strings.ToLower(variant)
			if strings.Contains(lowered, v) || strings.Contains(v, lowered) {
				return entry.Canonical
			}
		}
	}

	return lowered
}

// Matches reports whether a raw brand passes a target-brand filter. An
// empty filter accepts everything; an empty brand fails any non-empty
// filter. Matching is deliberately liberal: containment both ways against
// every variant of every target, so "Skin Ceuticals" passes a
// "skinceuticals" filter. Short targets can over-match; that trade-off is
// accepted to tolerate marketing-string variation.
func (n *Normalizer) Matches(raw string, targets []string) bool {
	if len(targets) == 0 {
		return true
	}

	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return false
	}

	for _, target := range targets {
		for _, variant := range n.variantsFor(target) {
			v := strings.ToLower(variant)
			if strings.Contains(lowered, v) || strings.Contains(v, lowered) {
				return true
			}
		}
	}

	return false
}

// variantsFor returns the alias variants of a target brand, or the target
// itself when it has no table entry.
func (n *Normalizer) variantsFor(target string) []string {
	key := strings.ToLower(strings.TrimSpace(target))
	for _, entry := range n.aliases {
		if entry.Canonical == key {
			return entry.Variants
		}
	}
	return []string{key}
}
