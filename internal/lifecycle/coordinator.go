// Package lifecycle drives an investment idea from submission through
// evaluation, gating, persistence, polling, and finalization, settling the
// incentive ledger along the way.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jlaasanen/dealflow/internal/errors"
	"github.com/jlaasanen/dealflow/internal/models"
	"github.com/jlaasanen/dealflow/internal/pipeline"
	"github.com/jlaasanen/dealflow/internal/repositories"
	"github.com/jlaasanen/dealflow/internal/session"
)

// Incentive-point policy.
const (
	// VotePoints is earned for casting any vote, regardless of outcome.
	VotePoints = 1
	// ApprovalBonus goes to the submitter when the idea is approved.
	ApprovalBonus = 5
	// AlignmentBonus goes to each voter whose vote matches the outcome.
	AlignmentBonus = 2
)

// DefaultScoreThreshold gates unprivileged submissions.
const DefaultScoreThreshold = 7

// Channel is the messaging surface the coordinator talks through. The
// concrete transport lives in internal/telegram; tests substitute a fake.
type Channel interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	// SendPoll sends text with a yes/no inline keyboard attached.
	SendPoll(ctx context.Context, chatID int64, text string) error
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// Config wires the coordinator's collaborators.
type Config struct {
	Ideas          *repositories.IdeaRepository
	Feedback       *repositories.FeedbackRepository
	Members        *repositories.MemberRepository
	Pipeline       *pipeline.Pipeline
	Sessions       *session.Tracker
	Channel        Channel
	Logger         *slog.Logger
	ScoreThreshold float64
	// BroadcastChatIDs are the distribution chats that receive polls for
	// approved founder pitches.
	BroadcastChatIDs []int64
}

type Coordinator struct {
	ideas          *repositories.IdeaRepository
	feedback       *repositories.FeedbackRepository
	members        *repositories.MemberRepository
	pipeline       *pipeline.Pipeline
	sessions       *session.Tracker
	channel        Channel
	logger         *slog.Logger
	scoreThreshold float64
	broadcastChats []int64
}

func New(cfg Config) *Coordinator {
	threshold := cfg.ScoreThreshold
	if threshold == 0 {
		threshold = DefaultScoreThreshold
	}
	return &Coordinator{
		ideas:          cfg.Ideas,
		feedback:       cfg.Feedback,
		members:        cfg.Members,
		pipeline:       cfg.Pipeline,
		sessions:       cfg.Sessions,
		channel:        cfg.Channel,
		logger:         cfg.Logger.With("source", "Coordinator"),
		scoreThreshold: threshold,
		broadcastChats: cfg.BroadcastChatIDs,
	}
}

// Submission is an inbound pitch.
type Submission struct {
	ChatID        int64
	Private       bool
	SubmitterID   int64
	SubmitterName string
	Topic         string
	// Privileged submitters bypass the score gate and poll in their own chat.
	Privileged bool
}

// Submit runs the evaluation pipeline, gates unprivileged pitches on the
// score threshold, persists the idea, binds it to the originating chat, and
// opens the poll. Only a persistence failure is returned; everything else
// resolves into a message to the submitter.
func (c *Coordinator) Submit(ctx context.Context, sub Submission) error {
	c.send(ctx, sub.ChatID, fmt.Sprintf("Pitch received: %q", sub.Topic))

	pkg := c.pipeline.Evaluate(ctx, sub.Topic)

	if !sub.Privileged && pkg.Score < c.scoreThreshold {
		c.send(ctx, sub.ChatID, fmt.Sprintf(
			"Thank you for your pitch. Unfortunately, your idea scored %s (threshold is %s). "+
				"Please review and try again later.",
			formatScore(pkg.Score), formatScore(c.scoreThreshold)))
		return nil
	}

	ideaID, err := c.ideas.Create(ctx, &models.Idea{
		Topic:           sub.Topic,
		SubmitterID:     sub.SubmitterID,
		SubmitterName:   sub.SubmitterName,
		ResearchSummary: pkg.ResearchSummary,
		Thesis:          pkg.Thesis,
		RiskAssessment:  pkg.RiskAssessment,
		Recommendations: pkg.Recommendations,
		EvaluationScore: pkg.Score,
	})
	if err != nil {
		c.send(ctx, sub.ChatID, "Failed to store the investment idea. Please try again later.")
		return errors.Wrap(err, "store submitted idea", slog.String("topic", sub.Topic))
	}

	// The originating chat tracks the new idea. Distribution chats are not
	// bound: votes cast there are only attributable when that chat has its
	// own binding.
	c.sessions.Bind(sub.ChatID, ideaID)

	if !sub.Privileged && sub.Private {
		c.send(ctx, sub.ChatID, fmt.Sprintf(
			"Your pitch scored %s and has been approved. It will now be forwarded to our groups for votes.",
			formatScore(pkg.Score)))
		for _, groupID := range c.broadcastChats {
			c.sendPoll(ctx, groupID, broadcastText(sub, pkg))
		}
		return nil
	}

	c.sendPoll(ctx, sub.ChatID, fmt.Sprintf(
		"Idea approved with score %s. Do you approve this investment idea?", formatScore(pkg.Score)))
	return nil
}

// Callback is an inbound poll-button press.
type Callback struct {
	ChatID     int64
	MessageID  int
	CallbackID string
	VoterID    int64
	VoterName  string
	Data       string
}

// HandleVote records a vote against the chat's bound idea and awards the
// voting point. Store failures are logged and swallowed so the voter still
// gets their confirmation; votes are deliberately not deduplicated.
func (c *Coordinator) HandleVote(ctx context.Context, cb Callback) error {
	ideaID, ok := c.sessions.Current(cb.ChatID)
	if !ok {
		c.answer(ctx, cb.CallbackID, "No active investment idea.")
		return errors.Wrap(errors.ErrNoActiveIdea, "vote in unbound chat", slog.Int64("chat_id", cb.ChatID))
	}

	value, ok := models.ParseVoteValue(cb.Data)
	if !ok {
		c.answer(ctx, cb.CallbackID, "Unknown vote option.")
		return nil
	}

	if err := c.feedback.Record(ctx, models.Vote{
		IdeaID:     ideaID,
		MemberID:   cb.VoterID,
		MemberName: cb.VoterName,
		Value:      value,
	}); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "could not record vote", errors.SlogError(err))
	}
	if err := c.members.Award(ctx, cb.VoterID, cb.VoterName, VotePoints); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "could not award voting point", errors.SlogError(err))
	}

	c.edit(ctx, cb.ChatID, cb.MessageID, fmt.Sprintf(
		"Your vote %q has been recorded. Thank you for your participation!", string(value)))
	c.answer(ctx, cb.CallbackID, "")
	return nil
}

// Result summarises a finalized idea.
type Result struct {
	IdeaID  int64
	Tally   models.Tally
	Outcome models.IdeaStatus
}

// Finalize resolves the chat's bound idea: tallies the votes, writes the
// terminal status, settles the bonus points, reports the result, and clears
// the binding. A strict yes-majority approves; ties reject. Re-invoking
// finalize for an already-terminal idea awards nothing.
func (c *Coordinator) Finalize(ctx context.Context, chatID int64) (*Result, error) {
	ideaID, ok := c.sessions.Current(chatID)
	if !ok {
		c.send(ctx, chatID, "No active investment idea to finalize.")
		return nil, errors.Wrap(errors.ErrNoActiveIdea, "finalize in unbound chat", slog.Int64("chat_id", chatID))
	}

	tally, err := c.feedback.Counts(ctx, ideaID)
	if err != nil {
		c.send(ctx, chatID, "Failed to tally votes. Please try again later.")
		return nil, errors.Wrap(err, "tally votes", slog.Int64("idea_id", ideaID))
	}
	outcome := tally.Outcome()

	transitioned, err := c.ideas.Finalize(ctx, ideaID, outcome)
	if err != nil {
		// Status write failures are not surfaced; the tally stands and the
		// settlement proceeds.
		c.logger.LogAttrs(ctx, slog.LevelError, "could not update idea status", errors.SlogError(err))
	} else if !transitioned {
		c.send(ctx, chatID, "This investment idea has already been finalized.")
		c.sessions.Clear(chatID)
		return nil, errors.Wrap(errors.ErrAlreadyFinalized, "finalize terminal idea", slog.Int64("idea_id", ideaID))
	}

	c.settleBonuses(ctx, ideaID, tally)

	c.send(ctx, chatID, fmt.Sprintf(
		"Finalized Investment Idea (ID: %d):\nYes votes: %d | No votes: %d\nOutcome: %s\nBonus points awarded.",
		ideaID, tally.Yes, tally.No, strings.ToUpper(string(outcome))))
	c.sessions.Clear(chatID)

	return &Result{IdeaID: ideaID, Tally: tally, Outcome: outcome}, nil
}

// settleBonuses awards the approval bonus to the submitter and the alignment
// bonus to every vote record that matches the outcome. Failures are logged
// and swallowed; finalize already reported the tally.
func (c *Coordinator) settleBonuses(ctx context.Context, ideaID int64, tally models.Tally) {
	if tally.Outcome() == models.IdeaStatusApproved {
		idea, err := c.ideas.Get(ctx, ideaID)
		if err != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "could not load idea for approval bonus", errors.SlogError(err))
		} else if err = c.members.Award(ctx, idea.SubmitterID, idea.SubmitterName, ApprovalBonus); err != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "could not award approval bonus", errors.SlogError(err))
		}
	}

	// A tie rejects without winners: nobody's vote "matched the outcome", so
	// no alignment bonus is paid.
	if tally.Yes == tally.No {
		return
	}

	voters, err := c.feedback.AlignedVoters(ctx, ideaID, tally.AlignedValue())
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "could not load aligned voters", errors.SlogError(err))
		return
	}
	for _, voter := range voters {
		if err = c.members.Award(ctx, voter.ID, voter.Name, AlignmentBonus); err != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "could not award alignment bonus",
				slog.Int64("member_id", voter.ID), errors.SlogError(err))
		}
	}
}

// Details sends the full record of one idea to the chat.
func (c *Coordinator) Details(ctx context.Context, chatID int64, ideaID int64) error {
	idea, err := c.ideas.Get(ctx, ideaID)
	if err != nil {
		c.send(ctx, chatID, "Idea not found.")
		return errors.Wrap(err, "idea details", slog.Int64("idea_id", ideaID))
	}
	c.send(ctx, chatID, formatIdeaDetails(idea))
	return nil
}

// Leaderboard sends the member incentive-point standings to the chat.
func (c *Coordinator) Leaderboard(ctx context.Context, chatID int64) error {
	members, err := c.members.Leaderboard(ctx)
	if err != nil {
		c.send(ctx, chatID, "Failed to look up member points. Please try again later.")
		return errors.Wrap(err, "leaderboard")
	}
	if len(members) == 0 {
		c.send(ctx, chatID, "No member points recorded yet.")
		return nil
	}
	var b strings.Builder
	b.WriteString("Member Incentive Points:\n")
	for _, member := range members {
		fmt.Fprintf(&b, "%s: %d points\n", member.Name, member.Points)
	}
	c.send(ctx, chatID, b.String())
	return nil
}

func (c *Coordinator) send(ctx context.Context, chatID int64, text string) {
	if err := c.channel.SendMessage(ctx, chatID, text); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "could not send message",
			slog.Int64("chat_id", chatID), errors.SlogError(err))
	}
}

func (c *Coordinator) sendPoll(ctx context.Context, chatID int64, text string) {
	if err := c.channel.SendPoll(ctx, chatID, text); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "could not send poll",
			slog.Int64("chat_id", chatID), errors.SlogError(err))
	}
}

func (c *Coordinator) edit(ctx context.Context, chatID int64, messageID int, text string) {
	if err := c.channel.EditMessage(ctx, chatID, messageID, text); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "could not edit message",
			slog.Int64("chat_id", chatID), errors.SlogError(err))
	}
}

func (c *Coordinator) answer(ctx context.Context, callbackID string, text string) {
	if err := c.channel.AnswerCallback(ctx, callbackID, text); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "could not answer callback", errors.SlogError(err))
	}
}

func broadcastText(sub Submission, pkg pipeline.Package) string {
	return fmt.Sprintf("New Investment Pitch from @%s:\nTopic: %q\n\nResearch Summary: %s\nThesis: %s\nRisk: %s\nRecommendations: %s\n\nVote below:",
		sub.SubmitterName, sub.Topic, pkg.ResearchSummary, pkg.Thesis, pkg.RiskAssessment, pkg.Recommendations)
}

func formatIdeaDetails(idea *models.Idea) string {
	return fmt.Sprintf("Idea ID: %d\nTopic: %s\nSubmitted by: @%s (ID: %d)\nResearch Summary: %s\nThesis: %s\nRisk Assessment: %s\nRecommendations: %s\nEvaluation Score: %s\nStatus: %s\nSubmitted At: %s",
		idea.ID, idea.Topic, idea.SubmitterName, idea.SubmitterID, idea.ResearchSummary, idea.Thesis,
		idea.RiskAssessment, idea.Recommendations, formatScore(idea.EvaluationScore), idea.Status,
		idea.CreatedAt.Format("2006-01-02 15:04:05 MST"))
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
