// Package intent classifies free-form mentions into a closed set of intents.
// It is a best-effort convenience layer: any failure degrades to KindOther
// with the original message as the query.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jlaasanen/dealflow/internal/ai"
	"github.com/jlaasanen/dealflow/internal/errors"
)

// Kind is the closed set of recognised intents.
type Kind string

const (
	KindInvestmentQuery Kind = "investment_query"
	KindGeneralInfo     Kind = "general_info"
	KindSearchQuery     Kind = "search_query"
	KindOther           Kind = "other"
)

func parseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindInvestmentQuery, KindGeneralInfo, KindSearchQuery, KindOther:
		return Kind(s), true
	}
	return "", false
}

// Classification is the tagged result of classifying one message.
type Classification struct {
	Kind  Kind
	Query string
}

// Completer is the narrative-generation capability the classifier delegates to.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error)
}

type Classifier struct {
	completer Completer
	logger    *slog.Logger
}

func NewClassifier(completer Completer, logger *slog.Logger) *Classifier {
	return &Classifier{
		completer: completer,
		logger:    logger.With("source", "Classifier"),
	}
}

// Classify asks the generator for a structured classification of message.
// Generation failure, malformed JSON, or an unknown intent all fall back to
// {KindOther, message}.
func (c *Classifier) Classify(ctx context.Context, message string) Classification {
	fallback := Classification{Kind: KindOther, Query: message}

	reply, err := c.completer.Complete(ctx, classifyPrompt(message), ai.CompletionOptions{
		MaxTokens:   80,
		Temperature: 0.3,
	})
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "intent classification failed", errors.SlogError(err))
		return fallback
	}

	var decoded struct {
		Intent string `json:"intent"`
		Query  string `json:"query"`
	}
	if err = json.Unmarshal([]byte(reply), &decoded); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "intent reply is not valid JSON",
			slog.String("reply", reply))
		return fallback
	}

	kind, ok := parseKind(decoded.Intent)
	if !ok {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "unknown intent", slog.String("intent", decoded.Intent))
		return fallback
	}

	query := decoded.Query
	if query == "" {
		query = message
	}
	return Classification{Kind: kind, Query: query}
}

func classifyPrompt(message string) string {
	return fmt.Sprintf(`You are an intelligent assistant integrated into a DAO's Telegram channel. `+
		`Analyze the following message and return a JSON object with two keys: "intent" and "query". `+
		`Valid intents include:
- "investment_query" (questions about investment ideas, risk, or due diligence),
- "general_info" (questions about DAO operations or membership),
- "search_query" (questions needing live info),
- "other" (if not clear).

Message: %q

JSON:`, message)
}
