package intent_test

import (
	"context"
	"io"
	"testing"

	"github.com/jlaasanen/dealflow/internal/ai"
	"github.com/jlaasanen/dealflow/internal/errors"
	"github.com/jlaasanen/dealflow/internal/intent"
	"github.com/jlaasanen/dealflow/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

type fixedCompleter struct {
	reply string
	err   error
}

func (c fixedCompleter) Complete(context.Context, string, ai.CompletionOptions) (string, error) {
	return c.reply, c.err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		err     error
		message string
		want    intent.Classification
	}{
		{
			name:    "investment query",
			reply:   `{"intent": "investment_query", "query": "what are the risks of solar?"}`,
			message: "@bot what are the risks of solar?",
			want: intent.Classification{
				Kind:  intent.KindInvestmentQuery,
				Query: "what are the risks of solar?",
			},
		},
		{
			name:    "search query",
			reply:   `{"intent": "search_query", "query": "latest lithium prices"}`,
			message: "@bot latest lithium prices",
			want: intent.Classification{
				Kind:  intent.KindSearchQuery,
				Query: "latest lithium prices",
			},
		},
		{
			name:    "empty query falls back to message",
			reply:   `{"intent": "general_info", "query": ""}`,
			message: "@bot how do I join?",
			want: intent.Classification{
				Kind:  intent.KindGeneralInfo,
				Query: "@bot how do I join?",
			},
		},
		{
			name:    "generation failure",
			err:     errors.Wrap(errors.ErrGeneration, "quota exceeded"),
			message: "@bot hello",
			want: intent.Classification{
				Kind:  intent.KindOther,
				Query: "@bot hello",
			},
		},
		{
			name:    "malformed JSON",
			reply:   "Sure! The intent is investment_query.",
			message: "@bot hello",
			want: intent.Classification{
				Kind:  intent.KindOther,
				Query: "@bot hello",
			},
		},
		{
			name:    "unknown intent",
			reply:   `{"intent": "small_talk", "query": "hi"}`,
			message: "@bot hi",
			want: intent.Classification{
				Kind:  intent.KindOther,
				Query: "@bot hi",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := intent.NewClassifier(
				fixedCompleter{reply: tt.reply, err: tt.err},
				testhelpers.NewLogger(io.Discard),
			)
			got := classifier.Classify(context.Background(), tt.message)
			require.Equal(t, tt.want, got)
		})
	}
}
