package knowledge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"intake-agent/internal/domain"
)

func qa(q string) domain.QAPair {
	return domain.QAPair{Question: q, Answer: "answer to " + q}
}

func score(query string, p domain.QAPair) int {
	n := 0
	q := strings.ToLower(p.Question)
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(q, tok) {
			n++
		}
	}
	return n
}

func TestTopK_AutomationWorkflow(t *testing.T) {
	corpus := []domain.QAPair{
		qa("What is workflow automation?"),
		qa("How much does it cost?"),
		qa("Can you automate my workflow end to end?"),
		qa("Do you offer automation audits?"),
		qa("Which workflow tools do you integrate with?"),
		qa("Is Workflow Automation safe for finance teams?"),
		qa("Who are you?"),
		qa("automation workflow pricing"),
		qa("What is a workflow?"),
		qa("automation for HR"),
		qa("Another automation question"),
	}

	got := TopK("automation workflow", corpus, 7)
	require.LessOrEqual(t, len(got), 7)
	require.NotEmpty(t, got)

	prev := 3
	for _, p := range got {
		s := score("automation workflow", p)
		require.GreaterOrEqual(t, s, 1, "question %q", p.Question)
		require.LessOrEqual(t, s, prev, "results must be sorted descending")
		prev = s
	}

	// The three two-token matches come first in corpus order.
	require.Equal(t, "What is workflow automation?", got[0].Question)
	require.Equal(t, "Is Workflow Automation safe for finance teams?", got[1].Question)
	require.Equal(t, "automation workflow pricing", got[2].Question)
	// Single-token matches follow in corpus order.
	require.Equal(t, "Can you automate my workflow end to end?", got[3].Question)
	require.Equal(t, "Do you offer automation audits?", got[4].Question)
}

func TestTopK_ExcludesZeroScores(t *testing.T) {
	corpus := []domain.QAPair{qa("pricing"), qa("support hours")}
	require.Empty(t, TopK("automation", corpus, 7))
}

func TestTopK_LimitsToK(t *testing.T) {
	corpus := make([]domain.QAPair, 0, 20)
	for i := 0; i < 20; i++ {
		corpus = append(corpus, qa(fmt.Sprintf("bot question %d", i)))
	}
	got := TopK("bot", corpus, 7)
	require.Len(t, got, 7)
	require.Equal(t, "bot question 0", got[0].Question)
	require.Equal(t, "bot question 6", got[6].Question)
}

func TestTopK_EdgeInputs(t *testing.T) {
	corpus := []domain.QAPair{qa("bot")}
	require.Nil(t, TopK("bot", corpus, 0))
	require.Nil(t, TopK("   ", corpus, 7))
	require.Nil(t, TopK("bot", nil, 7))
}

func TestFormatSnippets(t *testing.T) {
	out := FormatSnippets([]domain.QAPair{
		{Question: " What? ", Answer: " This. "},
		{Question: "Why?", Answer: "Because."},
	})
	require.Equal(t, "Q: What?\nA: This.\n\nQ: Why?\nA: Because.", out)
	require.Empty(t, FormatSnippets(nil))
}
