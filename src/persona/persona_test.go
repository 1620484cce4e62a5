package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(DefaultPersonas())

	p, ok := r.Lookup("adoption-consultant")
	require.True(t, ok)
	assert.Equal(t, "领养顾问小爪", p.Name)
	assert.NotEmpty(t, p.SystemPrompt)
	assert.Equal(t, 512, p.MaxTokens)

	_, ok = r.Lookup("nonexistent")
	assert.False(t, ok)
}

func TestRegistryLaterEntryOverrides(t *testing.T) {
	r := NewRegistry([]Persona{
		{ID: "a", Name: "first"},
		{ID: "a", Name: "second"},
	})

	p, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "second", p.Name)
}

func TestRegistryIDs(t *testing.T) {
	r := NewRegistry(DefaultPersonas())
	assert.ElementsMatch(t, []string{"adoption-consultant", "health-assistant"}, r.IDs())
}
