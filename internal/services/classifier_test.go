package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseControlTokenExactOnly(t *testing.T) {
	accepted := map[string]ControlToken{
		"yes":        TokenYes,
		"Yes":        TokenYes,
		" yes ":      TokenYes,
		"EDIT":       TokenEdit,
		"cancel":     TokenCancel,
		"resume":     TokenResume,
		"show":       TokenResume,
		"skip":       TokenSkip,
		"change_job": TokenChangeJob,
		"change job": TokenChangeJob,
	}
	for text, want := range accepted {
		got, ok := ParseControlToken(text)
		require.True(t, ok, text)
		require.Equal(t, want, got, text)
	}

	// Near-synonyms never count as tokens; they carry money.
	for _, text := range []string{"yeah", "yep", "ok", "sure", "y", "yes please", "cancel it"} {
		_, ok := ParseControlToken(text)
		require.False(t, ok, text)
	}
}

func TestIsGlobalAbort(t *testing.T) {
	for _, text := range []string{"cancel", "stop", "no", " Cancel "} {
		require.True(t, IsGlobalAbort(text), text)
	}
	for _, text := range []string{"nope", "stop the job", "cancel the expense"} {
		require.False(t, IsGlobalAbort(text), text)
	}
}

func TestClassifyControlTokenNeedsPending(t *testing.T) {
	c := NewClassifier(nil)
	ctx := context.Background()

	intent := c.Classify(ctx, "yes", true)
	require.Equal(t, IntentControl, intent.Family)
	require.Equal(t, TokenYes, intent.Token)
	require.Equal(t, StageControlToken, intent.Stage)

	// Without pending state a bare "yes" means nothing.
	intent = c.Classify(ctx, "yes", false)
	require.Equal(t, IntentNone, intent.Family)
}

func TestClassifyDomainCues(t *testing.T) {
	c := NewClassifier(nil)
	ctx := context.Background()

	cases := []struct {
		text   string
		family string
	}{
		{"spent $45 on screws at Home Depot", IntentExpense},
		{"bought 20 bucks of caulking", IntentExpense},
		{"received $500 from John for the deck", IntentRevenue},
		{"got paid $1,200 yesterday", IntentRevenue},
		{"clock in", IntentTimeclock},
		{"clocked out at 5pm", IntentTimeclock},
		{"start job Smith Roof", IntentJob},
		{"list jobs", IntentJob},
		{"add task order shingles", IntentTask},
		{"move last expense to job 2", IntentMoveLog},
	}
	for _, tc := range cases {
		intent := c.Classify(ctx, tc.text, false)
		require.Equal(t, tc.family, intent.Family, tc.text)
		require.Equal(t, StageDomainCues, intent.Stage, tc.text)
	}
}

func TestClassifyExpenseRevenueTieBreak(t *testing.T) {
	c := NewClassifier(nil)
	ctx := context.Background()

	cases := []struct {
		text   string
		family string
	}{
		// Both cue sets fire; the strong expense verb wins.
		{"paid $200 for the deposit on materials", IntentExpense},
		// Explicit received + instrument overrides the expense verb.
		{"received a cheque for $500 that I paid out for", IntentRevenue},
		{"deposit received, paid $300 into the account", IntentRevenue},
	}
	for _, tc := range cases {
		intent := c.Classify(ctx, tc.text, false)
		require.Equal(t, tc.family, intent.Family, tc.text)
	}
}

func TestClassifyMoneyRequiredForTransactionCues(t *testing.T) {
	c := NewClassifier(nil)
	ctx := context.Background()

	// An expense verb without an amount is not a stage-3 expense.
	intent := c.Classify(ctx, "I bought some stuff", false)
	require.NotEqual(t, IntentExpense, intent.Family)
}

func TestClassifyFallsThroughToCatalog(t *testing.T) {
	c := NewClassifier(nil)
	ctx := context.Background()

	intent := c.Classify(ctx, "punch in", false)
	// "punch in" is a stage-3 timeclock cue.
	require.Equal(t, IntentTimeclock, intent.Family)

	intent = c.Classify(ctx, "start my timer", false)
	require.Equal(t, IntentTimeclock, intent.Family)
	require.Equal(t, StageFuzzyCatalog, intent.Stage)
}

func TestClassifyNoOpinionWithoutFallback(t *testing.T) {
	c := NewClassifier(nil)
	intent := c.Classify(context.Background(), "what's the weather like", false)
	require.Equal(t, IntentNone, intent.Family)
}

type fakeFallback struct {
	call *ToolCall
	err  error
}

func (f *fakeFallback) Classify(ctx context.Context, text string, tools []ToolSpec) (*ToolCall, error) {
	return f.call, f.err
}

func TestClassifyFallbackToolMapping(t *testing.T) {
	c := NewClassifier(&fakeFallback{call: &ToolCall{Tool: "log_expense"}})
	intent := c.Classify(context.Background(), "grabbed some materials, forty five", false)
	require.Equal(t, IntentExpense, intent.Family)
	require.Equal(t, StageFallback, intent.Stage)
}

func TestClassifyFallbackDeclineAndErrors(t *testing.T) {
	// Decline (nil call) is a valid outcome.
	c := NewClassifier(&fakeFallback{})
	intent := c.Classify(context.Background(), "what's the weather like", false)
	require.Equal(t, IntentNone, intent.Family)

	// An out-of-set tool never becomes an intent.
	c = NewClassifier(&fakeFallback{call: &ToolCall{Tool: "send_payment"}})
	intent = c.Classify(context.Background(), "send mike fifty", false)
	require.Equal(t, IntentNone, intent.Family)

	// Transport errors degrade to no opinion.
	c = NewClassifier(&fakeFallback{err: context.DeadlineExceeded})
	intent = c.Classify(context.Background(), "what's the weather like", false)
	require.Equal(t, IntentNone, intent.Family)
}
