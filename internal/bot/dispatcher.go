// Package bot routes inbound Telegram updates to the lifecycle coordinator.
// Role gating (the single privileged operator, private-chat-only commands)
// happens here, before any state is touched.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/jlaasanen/dealflow/internal/ai"
	"github.com/jlaasanen/dealflow/internal/errors"
	"github.com/jlaasanen/dealflow/internal/intent"
	"github.com/jlaasanen/dealflow/internal/lifecycle"
	"github.com/jlaasanen/dealflow/internal/logging"
	"github.com/jlaasanen/dealflow/internal/pipeline"
	"github.com/jlaasanen/dealflow/internal/telegram"
)

const (
	// longPollTimeout is the server-side getUpdates wait in seconds.
	longPollTimeout = 50
	// retryDelay paces reconnects after a failed poll.
	retryDelay = 3 * time.Second
)

// UpdateSource is the inbound side of the messaging channel.
type UpdateSource interface {
	GetMe(ctx context.Context) (*telegram.User, error)
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]telegram.Update, error)
}

// Config wires the dispatcher's collaborators.
type Config struct {
	Updates       UpdateSource
	Channel       lifecycle.Channel
	Coordinator   *lifecycle.Coordinator
	Classifier    *intent.Classifier
	Completer     pipeline.Completer
	Logger        *slog.Logger
	AdminUsername string
}

type Dispatcher struct {
	updates       UpdateSource
	channel       lifecycle.Channel
	coordinator   *lifecycle.Coordinator
	classifier    *intent.Classifier
	completer     pipeline.Completer
	logger        *slog.Logger
	adminUsername string
	botUsername   string
}

func New(cfg Config) *Dispatcher {
	return &Dispatcher{
		updates:       cfg.Updates,
		channel:       cfg.Channel,
		coordinator:   cfg.Coordinator,
		classifier:    cfg.Classifier,
		completer:     cfg.Completer,
		logger:        cfg.Logger.With("source", "Dispatcher"),
		adminUsername: cfg.AdminUsername,
	}
}

// Run long-polls for updates until ctx is cancelled. Each update is handled
// on its own goroutine so a slow generator call in one chat never blocks the
// others.
func (d *Dispatcher) Run(ctx context.Context) error {
	me, err := d.updates.GetMe(ctx)
	if err != nil {
		return errors.Wrap(err, "resolve bot identity")
	}
	d.botUsername = me.Username
	d.logger.LogAttrs(ctx, slog.LevelInfo, "bot started", slog.String("username", d.botUsername))

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		updates, err := d.updates.GetUpdates(ctx, offset, longPollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.logger.LogAttrs(ctx, slog.LevelError, "poll failed, retrying", errors.SlogError(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			go d.dispatch(ctx, update)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, update telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.LogAttrs(ctx, slog.LevelError, "panic handling update",
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		d.handleCallback(ctx, *update.CallbackQuery)
	case update.Message != nil && strings.HasPrefix(update.Message.Text, "/"):
		d.handleCommand(ctx, *update.Message)
	case update.Message != nil:
		d.handleMention(ctx, *update.Message)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg telegram.Message) {
	if msg.From == nil {
		return
	}
	ctx = logging.WithAttrs(ctx,
		slog.Int64("chat_id", msg.Chat.ID),
		slog.Int64("user_id", msg.From.ID),
		slog.String("username", msg.From.Username))

	command, args := splitCommand(msg.Text, d.botUsername)
	switch command {
	case "/start":
		d.send(ctx, msg.Chat.ID, d.welcomeText())

	case "/help":
		d.send(ctx, msg.Chat.ID, d.helpText(msg))

	case "/submit_investment":
		if args == "" {
			d.send(ctx, msg.Chat.ID, "Usage: /submit_investment <topic>")
			return
		}
		err := d.coordinator.Submit(ctx, lifecycle.Submission{
			ChatID:        msg.Chat.ID,
			Private:       msg.Chat.Type == telegram.ChatTypePrivate,
			SubmitterID:   msg.From.ID,
			SubmitterName: displayName(msg.From),
			Topic:         args,
			Privileged:    d.isAdmin(msg.From),
		})
		if err != nil {
			d.logger.LogAttrs(ctx, slog.LevelError, "submission failed", errors.SlogError(err))
		}

	case "/finalize_investment":
		if !d.isAdmin(msg.From) || msg.Chat.Type != telegram.ChatTypePrivate {
			d.send(ctx, msg.Chat.ID, "You are not authorized to finalize ideas.")
			return
		}
		if _, err := d.coordinator.Finalize(ctx, msg.Chat.ID); err != nil {
			d.logger.LogAttrs(ctx, slog.LevelWarn, "finalize did not settle", errors.SlogError(err))
		}

	case "/member_points":
		if err := d.coordinator.Leaderboard(ctx, msg.Chat.ID); err != nil {
			d.logger.LogAttrs(ctx, slog.LevelError, "leaderboard failed", errors.SlogError(err))
		}

	case "/details":
		if !d.isAdmin(msg.From) || msg.Chat.Type != telegram.ChatTypePrivate {
			d.send(ctx, msg.Chat.ID, "You are not authorized to access idea details.")
			return
		}
		ideaID, err := strconv.ParseInt(args, 10, 64)
		if err != nil {
			d.send(ctx, msg.Chat.ID, "Usage: /details <idea_id>")
			return
		}
		if err = d.coordinator.Details(ctx, msg.Chat.ID, ideaID); err != nil {
			d.logger.LogAttrs(ctx, slog.LevelWarn, "details lookup failed", errors.SlogError(err))
		}
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb telegram.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	ctx = logging.WithAttrs(ctx,
		slog.Int64("chat_id", cb.Message.Chat.ID),
		slog.Int64("user_id", cb.From.ID),
		slog.String("username", cb.From.Username))

	err := d.coordinator.HandleVote(ctx, lifecycle.Callback{
		ChatID:     cb.Message.Chat.ID,
		MessageID:  cb.Message.MessageID,
		CallbackID: cb.ID,
		VoterID:    cb.From.ID,
		VoterName:  displayName(&cb.From),
		Data:       cb.Data,
	})
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "vote not recorded", errors.SlogError(err))
	}
}

// handleMention answers free-text messages that mention the bot. This is a
// best-effort convenience path; anything unclear falls through to a generic
// reply.
func (d *Dispatcher) handleMention(ctx context.Context, msg telegram.Message) {
	if msg.From == nil || !msg.HasMention(d.botUsername) {
		return
	}
	ctx = logging.WithAttrs(ctx,
		slog.Int64("chat_id", msg.Chat.ID),
		slog.Int64("user_id", msg.From.ID))

	classification := d.classifier.Classify(ctx, msg.Text)
	switch classification.Kind {
	case intent.KindSearchQuery:
		d.send(ctx, msg.Chat.ID, fmt.Sprintf(
			"I recognized a search query. Here are the top results for %q.", classification.Query))

	case intent.KindInvestmentQuery:
		answer, err := d.completer.Complete(ctx,
			fmt.Sprintf("Answer this investment-related question: %s", classification.Query),
			ai.CompletionOptions{MaxTokens: 100, Temperature: 0.5})
		if err != nil {
			d.logger.LogAttrs(ctx, slog.LevelWarn, "investment query failed", errors.SlogError(err))
			answer = "I encountered an issue processing your query."
		}
		d.send(ctx, msg.Chat.ID, answer)

	case intent.KindGeneralInfo:
		d.send(ctx, msg.Chat.ID, fmt.Sprintf("General info: %s", classification.Query))

	case intent.KindOther:
		d.send(ctx, msg.Chat.ID, fmt.Sprintf("Let me look that up for you: %s", classification.Query))
	}
}

func (d *Dispatcher) isAdmin(from *telegram.User) bool {
	return from.Username != "" && from.Username == d.adminUsername
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string) {
	if err := d.channel.SendMessage(ctx, chatID, text); err != nil {
		d.logger.LogAttrs(ctx, slog.LevelError, "could not send message",
			slog.Int64("chat_id", chatID), errors.SlogError(err))
	}
}

func (d *Dispatcher) welcomeText() string {
	return fmt.Sprintf(`Welcome to the Investment DAO Bot!

For Admin (@%s):
• Full commands are available via personal chat.

For Founders:
• Use /submit_investment <topic> to pitch your idea. Your pitch will be evaluated, and if approved, forwarded to our groups.

Use /help to view commands.`, d.adminUsername)
}

func (d *Dispatcher) helpText(msg telegram.Message) string {
	if msg.Chat.Type == telegram.ChatTypePrivate && d.isAdmin(msg.From) {
		return `Admin Commands:
• /submit_investment <topic> - Submit an investment idea.
• /finalize_investment - Finalize the current idea and tally votes.
• /member_points - Display member incentive points.
• /details <idea_id> - Get full details of a specific idea.

For Founders (in private chat):
• /submit_investment <topic> - Submit your pitch. It will be evaluated and, if good, forwarded to the groups.`
	}
	return `Available Commands:
• /submit_investment <topic> - Submit an investment idea.
• /member_points - View the member points leaderboard.`
}

// splitCommand separates the command word from its arguments and strips the
// optional @botname suffix used in group chats.
func splitCommand(text, botUsername string) (string, string) {
	command, args, _ := strings.Cut(text, " ")
	command = strings.TrimSuffix(command, "@"+botUsername)
	return command, strings.TrimSpace(args)
}

// displayName mirrors the username fallback used for vote records.
func displayName(from *telegram.User) string {
	if from.Username != "" {
		return from.Username
	}
	return "anonymous"
}
