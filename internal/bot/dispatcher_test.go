package bot

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jlaasanen/dealflow/internal/ai"
	"github.com/jlaasanen/dealflow/internal/db"
	"github.com/jlaasanen/dealflow/internal/intent"
	"github.com/jlaasanen/dealflow/internal/lifecycle"
	"github.com/jlaasanen/dealflow/internal/pipeline"
	"github.com/jlaasanen/dealflow/internal/repositories"
	"github.com/jlaasanen/dealflow/internal/session"
	"github.com/jlaasanen/dealflow/internal/telegram"
	"github.com/jlaasanen/dealflow/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu       sync.Mutex
	messages []string
	polls    []string
	answers  []string
}

func (f *fakeChannel) SendMessage(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, fmt.Sprintf("%d: %s", chatID, text))
	return nil
}

func (f *fakeChannel) SendPoll(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls = append(f.polls, fmt.Sprintf("%d: %s", chatID, text))
	return nil
}

func (f *fakeChannel) EditMessage(context.Context, int64, int, string) error { return nil }

func (f *fakeChannel) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeChannel) lastMessage(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages)
	return f.messages[len(f.messages)-1]
}

func (f *fakeChannel) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// scriptedCompleter keys replies on prompt templates so one fake serves the
// pipeline, the classifier, and free-form answers.
type scriptedCompleter struct {
	classifyReply string
}

func (c scriptedCompleter) Complete(_ context.Context, prompt string, _ ai.CompletionOptions) (string, error) {
	switch {
	case strings.Contains(prompt, `"intent" and "query"`):
		return c.classifyReply, nil
	case strings.Contains(prompt, "single numeric score"):
		return "9", nil
	case strings.Contains(prompt, "investment-related question"):
		return "Diversification is prudent.", nil
	default:
		return "Canned narrative.", nil
	}
}

// fakeSource hands out one scripted batch of updates, then blocks until the
// context it cancels on its second call is done.
type fakeSource struct {
	updates []telegram.Update
	cancel  context.CancelFunc

	mu     sync.Mutex
	served bool
}

func (s *fakeSource) GetMe(context.Context) (*telegram.User, error) {
	return &telegram.User{ID: 42, Username: "dealflow_bot"}, nil
}

func (s *fakeSource) GetUpdates(ctx context.Context, offset int64, _ int) ([]telegram.Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.served {
		s.served = true
		return s.updates, nil
	}
	s.cancel()
	return nil, ctx.Err()
}

func newTestDispatcher(t *testing.T, classifyReply string) (*Dispatcher, *fakeChannel) {
	t.Helper()

	dbs, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, dbs.Close())
	})

	logger := testhelpers.NewLogger(io.Discard)
	channel := &fakeChannel{}
	completer := scriptedCompleter{classifyReply: classifyReply}

	coordinator := lifecycle.New(lifecycle.Config{
		Ideas:          repositories.NewIdeaRepository(dbs, logger),
		Feedback:       repositories.NewFeedbackRepository(dbs, logger),
		Members:        repositories.NewMemberRepository(dbs, logger),
		Pipeline:       pipeline.New(completer, logger),
		Sessions:       session.NewTracker(),
		Channel:        channel,
		Logger:         logger,
		ScoreThreshold: 7,
	})

	dispatcher := New(Config{
		Channel:       channel,
		Coordinator:   coordinator,
		Classifier:    intent.NewClassifier(completer, logger),
		Completer:     completer,
		Logger:        logger,
		AdminUsername: "shakti0675",
	})
	dispatcher.botUsername = "dealflow_bot"
	return dispatcher, channel
}

func commandMessage(chatType, username, text string) telegram.Message {
	return telegram.Message{
		MessageID: 7,
		Chat:      telegram.Chat{ID: 500, Type: chatType},
		From:      &telegram.User{ID: 100, Username: username},
		Text:      text,
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantCommand string
		wantArgs    string
	}{
		{name: "bare command", text: "/start", wantCommand: "/start", wantArgs: ""},
		{name: "with args", text: "/submit_investment solar farms", wantCommand: "/submit_investment", wantArgs: "solar farms"},
		{name: "group suffix stripped", text: "/member_points@dealflow_bot", wantCommand: "/member_points", wantArgs: ""},
		{name: "suffix and args", text: "/details@dealflow_bot 3", wantCommand: "/details", wantArgs: "3"},
		{name: "foreign suffix kept", text: "/start@other_bot", wantCommand: "/start@other_bot", wantArgs: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, args := splitCommand(tt.text, "dealflow_bot")
			require.Equal(t, tt.wantCommand, command)
			require.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestHandleCommand_SubmitUsageHint(t *testing.T) {
	dispatcher, channel := newTestDispatcher(t, "{}")

	dispatcher.handleCommand(context.Background(), commandMessage("private", "aurora", "/submit_investment"))

	require.Equal(t, "500: Usage: /submit_investment <topic>", channel.lastMessage(t))
}

func TestHandleCommand_FinalizeRequiresAdminPrivateChat(t *testing.T) {
	dispatcher, channel := newTestDispatcher(t, "{}")

	dispatcher.handleCommand(context.Background(), commandMessage("private", "aurora", "/finalize_investment"))
	require.Equal(t, "500: You are not authorized to finalize ideas.", channel.lastMessage(t))

	dispatcher.handleCommand(context.Background(), commandMessage("group", "shakti0675", "/finalize_investment"))
	require.Equal(t, "500: You are not authorized to finalize ideas.", channel.lastMessage(t))
}

func TestHandleCommand_DetailsAuthorizationAndUsage(t *testing.T) {
	dispatcher, channel := newTestDispatcher(t, "{}")

	dispatcher.handleCommand(context.Background(), commandMessage("group", "aurora", "/details 1"))
	require.Equal(t, "500: You are not authorized to access idea details.", channel.lastMessage(t))

	dispatcher.handleCommand(context.Background(), commandMessage("private", "shakti0675", "/details first"))
	require.Equal(t, "500: Usage: /details <idea_id>", channel.lastMessage(t))

	dispatcher.handleCommand(context.Background(), commandMessage("private", "shakti0675", "/details 99"))
	require.Equal(t, "500: Idea not found.", channel.lastMessage(t))
}

func TestHandleCommand_HelpVariesByRole(t *testing.T) {
	dispatcher, channel := newTestDispatcher(t, "{}")

	dispatcher.handleCommand(context.Background(), commandMessage("private", "shakti0675", "/help"))
	require.Contains(t, channel.lastMessage(t), "/finalize_investment")

	dispatcher.handleCommand(context.Background(), commandMessage("group", "shakti0675", "/help"))
	require.NotContains(t, channel.lastMessage(t), "/finalize_investment")

	dispatcher.handleCommand(context.Background(), commandMessage("private", "aurora", "/help"))
	require.NotContains(t, channel.lastMessage(t), "/finalize_investment")
}

func TestHandleCallback_NoActiveIdea(t *testing.T) {
	dispatcher, channel := newTestDispatcher(t, "{}")

	dispatcher.handleCallback(context.Background(), telegram.CallbackQuery{
		ID:   "cb-1",
		From: telegram.User{ID: 100, Username: "aurora"},
		Message: &telegram.Message{
			MessageID: 7,
			Chat:      telegram.Chat{ID: 500, Type: "group"},
		},
		Data: "yes",
	})

	channel.mu.Lock()
	defer channel.mu.Unlock()
	require.Equal(t, []string{"No active investment idea."}, channel.answers)
}

func TestHandleMention_Routes(t *testing.T) {
	mention := func(text string) telegram.Message {
		return telegram.Message{
			MessageID: 7,
			Chat:      telegram.Chat{ID: 500, Type: "group"},
			From:      &telegram.User{ID: 100, Username: "aurora"},
			Text:      text,
			Entities: []telegram.MessageEntity{
				{Type: "mention", Offset: 0, Length: len("@dealflow_bot")},
			},
		}
	}

	tests := []struct {
		name          string
		classifyReply string
		want          string
	}{
		{
			name:          "search query",
			classifyReply: `{"intent": "search_query", "query": "latest BTC price"}`,
			want:          `500: I recognized a search query. Here are the top results for "latest BTC price".`,
		},
		{
			name:          "investment query",
			classifyReply: `{"intent": "investment_query", "query": "is staking safe"}`,
			want:          "500: Diversification is prudent.",
		},
		{
			name:          "general info",
			classifyReply: `{"intent": "general_info", "query": "how do I join"}`,
			want:          "500: General info: how do I join",
		},
		{
			name:          "garbled reply falls back to other",
			classifyReply: "not json",
			want:          "500: Let me look that up for you: @dealflow_bot hello",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher, channel := newTestDispatcher(t, tt.classifyReply)

			dispatcher.handleMention(context.Background(), mention("@dealflow_bot hello"))

			require.Equal(t, tt.want, channel.lastMessage(t))
		})
	}
}

func TestHandleMention_IgnoresMessagesWithoutMention(t *testing.T) {
	dispatcher, channel := newTestDispatcher(t, "{}")

	dispatcher.handleMention(context.Background(), telegram.Message{
		MessageID: 7,
		Chat:      telegram.Chat{ID: 500, Type: "group"},
		From:      &telegram.User{ID: 100, Username: "aurora"},
		Text:      "just chatting",
	})

	require.Zero(t, channel.messageCount())
}

func TestRun_DispatchesUpdatesUntilCancelled(t *testing.T) {
	dispatcher, channel := newTestDispatcher(t, "{}")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := commandMessage("private", "aurora", "/start")
	source := &fakeSource{
		updates: []telegram.Update{{UpdateID: 11, Message: &start}},
		cancel:  cancel,
	}
	dispatcher.updates = source

	require.NoError(t, dispatcher.Run(ctx))

	require.Eventually(t, func() bool {
		return channel.messageCount() == 1
	}, time.Second, 10*time.Millisecond)
	require.Contains(t, channel.lastMessage(t), "Welcome to the Investment DAO Bot!")
}
