package injection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mnemohq/mnemo/pkg/mnemo"
)

func mem(content string, t mnemo.MemoryType) mnemo.RetrievedMemory {
	return mnemo.RetrievedMemory{Memory: mnemo.Memory{
		Content: content, MemoryType: t, CreatedAt: mnemo.NowMicro(),
	}}
}

func TestFormat_EmptyInput(t *testing.T) {
	require.Equal(t, "", Format(nil, 1000))
}

func TestFormat_IncludesAllWithinBudget(t *testing.T) {
	memories := []mnemo.RetrievedMemory{
		mem("likes hiking", mnemo.Episodic),
		mem("works as an engineer", mnemo.Semantic),
	}
	out := Format(memories, 1000)
	require.Contains(t, out, "<mnemo-memories>")
	require.Contains(t, out, "likes hiking")
	require.Contains(t, out, "works as an engineer")
	require.Contains(t, out, `type="episodic"`)
	require.Contains(t, out, "</mnemo-memories>")
}

func TestFormat_StopsAtBudget(t *testing.T) {
	memories := []mnemo.RetrievedMemory{
		mem("short one", mnemo.Semantic),
		mem("this one should not fit because the budget is tiny", mnemo.Semantic),
	}
	out := Format(memories, 50)
	require.Contains(t, out, "short one")
	require.NotContains(t, out, "should not fit")
}

func TestFormat_ZeroBudgetYieldsEmpty(t *testing.T) {
	memories := []mnemo.RetrievedMemory{mem("anything", mnemo.Semantic)}
	require.Equal(t, "", Format(memories, 5))
}
