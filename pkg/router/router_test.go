package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mnemohq/mnemo/pkg/mnemo"
)

func TestRoute_EntitiesAndTopics(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	out := r.Route("I had a wonderful meeting with John yesterday about the Databricks project")

	require.NotEmpty(t, out.Entities)
	foundJohn := false
	for _, e := range out.Entities {
		if e.Text == "John" {
			foundJohn = true
			require.Equal(t, mnemo.EntityPerson, e.Label)
		}
	}
	require.True(t, foundJohn, "expected John to be extracted as an entity")

	require.Contains(t, out.Topics, "john")
	require.Greater(t, out.EmotionalValence, 0.0)
	require.Contains(t, out.SearchTypes, mnemo.Episodic)
}

func TestRoute_SearchTypeHints(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	out := r.Route("How to configure the router, a step by step guide")
	require.Contains(t, out.SearchTypes, mnemo.Procedural)

	out = r.Route("What is the meaning of entropy")
	require.Contains(t, out.SearchTypes, mnemo.Semantic)

	out = r.Route("plain text with no hints at all")
	require.Equal(t, []mnemo.MemoryType{mnemo.Episodic, mnemo.Semantic}, out.SearchTypes)
}

func TestRoute_QueryKeysDedupAndMinLength(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	out := r.Route("Alice met Alice at a cafe")
	count := 0
	for _, k := range out.QueryKeys {
		if k == "alice" {
			count++
		}
		require.GreaterOrEqual(t, len(k), 2)
	}
	require.Equal(t, 1, count)
}
