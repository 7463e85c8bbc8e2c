package brand

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := New(nil)

	t.Run("alias variants agree on canonical key", func(t *testing.T) {
		assert.Equal(t, "skinceuticals", n.Normalize("SKINCEUTICALS"))
		assert.Equal(t, "skinceuticals", n.Normalize("Skin Ceuticals"))
		assert.Equal(t, "skinceuticals", n.Normalize("skin ceuticals"))
	})

	t.Run("multi word aliases", func(t *testing.T) {
		assert.Equal(t, "paula's choice", n.Normalize("Paulas Choice"))
		assert.Equal(t, "dr. dennis gross", n.Normalize("Dr Dennis Gross Skincare"))
		assert.Equal(t, "drunk elephant", n.Normalize("DrunkElephant"))
	})

	t.Run("unmatched brand degrades to lowered form", func(t *testing.T) {
		assert.Equal(t, "la roche-posay", n.Normalize("  La Roche-Posay "))
	})

	t.Run("empty brand is unknown", func(t *testing.T) {
		assert.Equal(t, Unknown, n.Normalize(""))
		assert.Equal(t, Unknown, n.Normalize("   "))
	})

	t.Run("table order resolves ties", func(t *testing.T) {
		n := New([]Alias{
			{Canonical: "first", Variants: []string{"acme"}},
			{Canonical: "second", Variants: []string{"acme labs"}},
		})
		assert.Equal(t, "first", n.Normalize("Acme Labs"))
	})
}

func TestMatches(t *testing.T) {
	n := New(nil)

	t.Run("no filter accepts everything", func(t *testing.T) {
		assert.True(t, n.Matches("Dermalogica", nil))
		assert.True(t, n.Matches("", nil))
	})

	t.Run("empty brand fails a filter", func(t *testing.T) {
		assert.False(t, n.Matches("", []string{"murad"}))
	})

	t.Run("unrelated brand fails", func(t *testing.T) {
		assert.False(t, n.Matches("Random Brand", []string{"dermalogica"}))
	})

	t.Run("variant spelling passes", func(t *testing.T) {
		assert.True(t, n.Matches("Skin Ceuticals", []string{"skinceuticals"}))
		assert.True(t, n.Matches("DERMALOGICA", []string{"dermalogica"}))
	})

	t.Run("target without table entry matches itself", func(t *testing.T) {
		assert.True(t, n.Matches("Caudalie Paris", []string{"caudalie"}))
	})
}

func TestLoadAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.json")
	data := `[
		{"canonical": "dermalogica", "variants": ["dermalogica"]},
		{"canonical": "murad", "variants": ["murad", "murad skincare"]}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	aliases, err := LoadAliases(path)
	require.NoError(t, err)
	require.Len(t, aliases, 2)
	assert.Equal(t, "dermalogica", aliases[0].Canonical)
	assert.Equal(t, []string{"murad", "murad skincare"}, aliases[1].Variants)

	_, err = LoadAliases(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
