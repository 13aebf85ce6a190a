// Package pipeline runs the sequential evaluation chain that turns a raw
// investment topic into a scored idea package.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/jlaasanen/dealflow/internal/ai"
	"github.com/jlaasanen/dealflow/internal/errors"
)

// Completer is the narrative-generation capability the pipeline depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error)
}

// Fallback values for generator failures. A single failed call degrades the
// affected field instead of aborting the whole evaluation.
const (
	riskFallback           = "Risk assessment not available."
	recommendationFallback = "No recommendations available."
)

// Package is the evaluated idea: the generated narrative fields plus the
// numeric score.
type Package struct {
	ResearchSummary string
	Thesis          string
	RiskAssessment  string
	Recommendations string
	Score           float64
}

type Pipeline struct {
	completer Completer
	logger    *slog.Logger
}

func New(completer Completer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		completer: completer,
		logger:    logger.With("source", "Pipeline"),
	}
}

// Evaluate runs the fixed chain: local research draft, generated
// condensation, local thesis, generated risk assessment, generated
// recommendations, generated score. It never fails; each generator call has
// its own fallback and no call is retried.
func (p *Pipeline) Evaluate(ctx context.Context, topic string) Package {
	draft := draftResearch(topic)

	summary, err := p.completer.Complete(ctx, summarisePrompt(draft), ai.CompletionOptions{
		MaxTokens:   150,
		Temperature: 0.5,
	})
	if err != nil {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "summarisation failed, keeping research draft", errors.SlogError(err))
		summary = draft
	}

	thesis := buildThesis(summary)

	risk, err := p.completer.Complete(ctx, riskPrompt(thesis), ai.CompletionOptions{
		MaxTokens:   200,
		Temperature: 0.6,
	})
	if err != nil {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "risk assessment failed, using fallback", errors.SlogError(err))
		risk = riskFallback
	}

	recommendations, err := p.completer.Complete(ctx, recommendationPrompt(thesis, risk), ai.CompletionOptions{
		MaxTokens:   150,
		Temperature: 0.7,
	})
	if err != nil {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "recommendations failed, using fallback", errors.SlogError(err))
		recommendations = recommendationFallback
	}

	return Package{
		ResearchSummary: summary,
		Thesis:          thesis,
		RiskAssessment:  risk,
		Recommendations: recommendations,
		Score:           p.scoreTopic(ctx, topic),
	}
}

func (p *Pipeline) scoreTopic(ctx context.Context, topic string) float64 {
	reply, err := p.completer.Complete(ctx, scorePrompt(topic), ai.CompletionOptions{
		MaxTokens:   20,
		Temperature: 0.3,
	})
	if err != nil {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "scoring failed, defaulting to 0", errors.SlogError(err))
		return 0
	}
	score, ok := ParseScore(reply)
	if !ok {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "score reply not numeric, defaulting to 0",
			slog.String("reply", reply))
		return 0
	}
	return score
}

var scorePattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// ParseScore extracts the first floating-point token from free text, e.g.
// "Score: 7.5 out of 10" parses to 7.5.
func ParseScore(s string) (float64, bool) {
	match := scorePattern.FindString(s)
	if match == "" {
		return 0, false
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return score, true
}

// draftResearch is the deterministic local step seeding the chain.
func draftResearch(topic string) string {
	return fmt.Sprintf("Preliminary research on %q: aggregated market data, trends, and news.", topic)
}

// buildThesis embeds the condensed summary into the thesis statement.
func buildThesis(summary string) string {
	return fmt.Sprintf(
		"Investment Thesis: Based on the research, this opportunity looks promising. Details: %s", summary)
}

func summarisePrompt(text string) string {
	return fmt.Sprintf(
		"Summarize the following research details into a concise paragraph:\n\n%s\n\nSummary:", text)
}

func riskPrompt(thesis string) string {
	return fmt.Sprintf("Evaluate the following investment thesis and provide a risk assessment including "+
		"key risk factors, mitigation strategies, and a risk score (1=low, 10=high):\n\n%s\n\nRisk Assessment:",
		thesis)
}

func recommendationPrompt(thesis, risk string) string {
	return fmt.Sprintf("Based on the following investment thesis and risk assessment, provide recommendations "+
		"for next steps (such as due diligence areas, questions for founders, or follow-up actions):\n\n"+
		"Thesis: %s\nRisk Assessment: %s\n\nRecommendations:", thesis, risk)
}

func scorePrompt(topic string) string {
	return fmt.Sprintf("Evaluate the following investment idea and provide a single numeric score between "+
		"1 (poor) and 10 (excellent) that represents its potential:\n\n%q\n\nScore:", topic)
}
