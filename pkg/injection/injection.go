package injection

import (
	"fmt"
	"strings"

	"github.com/mnemohq/mnemo/pkg/mnemo"
)

const (
	wrapperOverheadTokens = 10
	perMemoryOverheadTokens = 15
)

// Format renders memories (already ordered by relevance) into a
// <mnemo-memories> block, stopping before the
// memory that would push the running token estimate over budgetTokens.
// Empty input renders to "" (a no-op; the caller leaves the body
// untouched).
func Format(memories []mnemo.RetrievedMemory, budgetTokens int) string {
	if len(memories) == 0 {
		return ""
	}

	var body strings.Builder
	used := wrapperOverheadTokens
	count := 0

	for _, rm := range memories {
		block := renderMemory(&rm.Memory)
		cost := perMemoryOverheadTokens + estimateTokens(block)
		if used+cost > budgetTokens {
			break
		}
		body.WriteString(block)
		used += cost
		count++
	}

	if count == 0 {
		return ""
	}
	return "<mnemo-memories>\n" + body.String() + "</mnemo-memories>"
}

func renderMemory(m *mnemo.Memory) string {
	ts := m.CreatedAt.Time().UTC().Format("2006-01-02")
	content := strings.ReplaceAll(m.Content, "</memory>", `<\/memory>`)
	return fmt.Sprintf("<memory timestamp=%q type=%q>\n  %s\n</memory>\n", ts, string(m.MemoryType), content)
}

// estimateTokens approximates token count as ceil(chars/4).
func estimateTokens(s string) int {
	n := len([]rune(s))
	return (n + 3) / 4
}
