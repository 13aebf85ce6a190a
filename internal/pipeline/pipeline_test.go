package pipeline_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/jlaasanen/dealflow/internal/ai"
	"github.com/jlaasanen/dealflow/internal/errors"
	"github.com/jlaasanen/dealflow/internal/pipeline"
	"github.com/jlaasanen/dealflow/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

// scriptedCompleter answers prompts by matching a keyword of the prompt
// template, so each pipeline step can be scripted independently.
type scriptedCompleter struct {
	replies  map[string]string
	failures map[string]bool
	prompts  []string
}

func (c *scriptedCompleter) Complete(_ context.Context, prompt string, _ ai.CompletionOptions) (string, error) {
	c.prompts = append(c.prompts, prompt)
	for keyword, fail := range c.failures {
		if fail && strings.Contains(prompt, keyword) {
			return "", errors.Wrap(errors.ErrGeneration, "scripted failure")
		}
	}
	for keyword, reply := range c.replies {
		if strings.Contains(prompt, keyword) {
			return reply, nil
		}
	}
	return "", errors.Wrap(errors.ErrGeneration, "unscripted prompt")
}

// Prompt template keywords, one per generated step.
const (
	summariseStep = "Summarize the following research details"
	riskStep      = "provide a risk assessment"
	recommendStep = "provide recommendations"
	scoreStep     = "single numeric score"
)

func TestEvaluate(t *testing.T) {
	completer := &scriptedCompleter{
		replies: map[string]string{
			summariseStep: "Condensed market outlook.",
			riskStep:      "Moderate regulatory risk. Risk score: 4.",
			recommendStep: "Talk to the founders about unit economics.",
			scoreStep:     "8",
		},
	}
	p := pipeline.New(completer, testhelpers.NewLogger(io.Discard))

	pkg := p.Evaluate(context.Background(), "Solar microgrids")

	require.Equal(t, "Condensed market outlook.", pkg.ResearchSummary)
	require.Contains(t, pkg.Thesis, "Condensed market outlook.",
		"thesis embeds the condensed summary")
	require.Equal(t, "Moderate regulatory risk. Risk score: 4.", pkg.RiskAssessment)
	require.Equal(t, "Talk to the founders about unit economics.", pkg.Recommendations)
	require.InDelta(t, 8, pkg.Score, 0)
	require.Len(t, completer.prompts, 4, "one generator call per generated step")
}

func TestEvaluateSummarisationFailureFallsBackToDraft(t *testing.T) {
	completer := &scriptedCompleter{
		replies: map[string]string{
			riskStep:      "risk",
			recommendStep: "recs",
			scoreStep:     "7",
		},
		failures: map[string]bool{summariseStep: true},
	}
	p := pipeline.New(completer, testhelpers.NewLogger(io.Discard))

	pkg := p.Evaluate(context.Background(), "Solar microgrids")

	require.Contains(t, pkg.ResearchSummary, `Preliminary research on "Solar microgrids"`)
	require.Contains(t, pkg.Thesis, pkg.ResearchSummary, "thesis embeds the raw draft")
}

func TestEvaluateRiskFailureUsesSentinelAndContinues(t *testing.T) {
	completer := &scriptedCompleter{
		replies: map[string]string{
			summariseStep: "summary",
			recommendStep: "recs",
			scoreStep:     "9",
		},
		failures: map[string]bool{riskStep: true},
	}
	p := pipeline.New(completer, testhelpers.NewLogger(io.Discard))

	pkg := p.Evaluate(context.Background(), "Topic")

	require.Equal(t, "Risk assessment not available.", pkg.RiskAssessment)
	require.Equal(t, "recs", pkg.Recommendations, "later steps proceed unaffected")
	require.InDelta(t, 9, pkg.Score, 0)
}

func TestEvaluateRecommendationFailureUsesSentinel(t *testing.T) {
	completer := &scriptedCompleter{
		replies: map[string]string{
			summariseStep: "summary",
			riskStep:      "risk",
			scoreStep:     "9",
		},
		failures: map[string]bool{recommendStep: true},
	}
	p := pipeline.New(completer, testhelpers.NewLogger(io.Discard))

	pkg := p.Evaluate(context.Background(), "Topic")
	require.Equal(t, "No recommendations available.", pkg.Recommendations)
}

func TestEvaluateScoreFailureDefaultsToZero(t *testing.T) {
	completer := &scriptedCompleter{
		replies: map[string]string{
			summariseStep: "summary",
			riskStep:      "risk",
			recommendStep: "recs",
		},
		failures: map[string]bool{scoreStep: true},
	}
	p := pipeline.New(completer, testhelpers.NewLogger(io.Discard))

	pkg := p.Evaluate(context.Background(), "Topic")
	require.Zero(t, pkg.Score)
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		reply string
		want  float64
		ok    bool
	}{
		{"8", 8, true},
		{"8.5", 8.5, true},
		{"8.5/10", 8.5, true},
		{"Score: 7.2 because the market is growing", 7.2, true},
		{"I'd rate this a 6 out of 10.", 6, true},
		{"excellent", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			got, ok := pipeline.ParseScore(tt.reply)
			require.Equal(t, tt.ok, ok)
			require.InDelta(t, tt.want, got, 0)
		})
	}
}
