package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreFindByID(t *testing.T) {
	store := NewMemoryStore(Seed())

	got, ok := store.FindByID(DefaultID)
	require.True(t, ok)
	assert.Equal(t, "PixelForge Studio", got.Name)
	assert.NotEmpty(t, got.Greeting)

	_, ok = store.FindByID("missing")
	assert.False(t, ok)
}

func TestMemoryStoreListIsCopy(t *testing.T) {
	store := NewMemoryStore(Seed())

	list := store.List()
	list[0].Name = "mutated"

	again, _ := store.FindByID(DefaultID)
	assert.Equal(t, "PixelForge Studio", again.Name)
}

func TestMemoryStoreEmptyIDSelectsDefault(t *testing.T) {
	store := NewMemoryStore(Seed())

	got, ok := store.FindByID("")
	require.True(t, ok)
	assert.Equal(t, DefaultID, got.ID)
}

func TestMemoryStoreSkipsDuplicatesAndBlankIDs(t *testing.T) {
	store := NewMemoryStore([]Persona{
		{ID: "a", Name: "first"},
		{ID: "", Name: "blank"},
		{ID: "a", Name: "second"},
		{ID: "b", Name: "other"},
	})

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Name)
	assert.Equal(t, "b", list[1].ID)

	got, ok := store.FindByID("a")
	require.True(t, ok)
	assert.Equal(t, "first", got.Name)
}
