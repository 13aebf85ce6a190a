package repositories

import (
	"context"
	"log/slog"

	"github.com/jlaasanen/dealflow/internal/db"
	"github.com/jlaasanen/dealflow/internal/errors"
	"github.com/jlaasanen/dealflow/internal/models"
)

// FeedbackRepository is the append-only vote log and tally for idea polls.
//
// Voters are not deduplicated: a member voting twice appends two records and
// both are counted. This mirrors the incentive design where every cast vote
// earns the voting point.
type FeedbackRepository struct {
	dbs    *db.Database
	logger *slog.Logger
}

func NewFeedbackRepository(dbs *db.Database, logger *slog.Logger) *FeedbackRepository {
	return &FeedbackRepository{
		dbs:    dbs,
		logger: logger.With("source", "FeedbackRepository"),
	}
}

// Record appends a vote with a store-assigned timestamp.
func (r *FeedbackRepository) Record(ctx context.Context, vote models.Vote) error {
	stmt := `INSERT INTO feedback (idea_id, member_id, member_username, vote)
	VALUES (?, ?, ?, ?)`
	if _, err := r.dbs.ReadWrite.ExecContext(ctx, stmt,
		vote.IdeaID, vote.MemberID, vote.MemberName, string(vote.Value)); err != nil {
		return errors.Wrap(err, "insert vote",
			slog.Int64("idea_id", vote.IdeaID), slog.Int64("member_id", vote.MemberID))
	}
	return nil
}

// Counts tallies the yes/no votes for an idea. Vote values compare
// case-insensitively; an idea without votes tallies zero/zero.
func (r *FeedbackRepository) Counts(ctx context.Context, ideaID int64) (models.Tally, error) {
	var tally models.Tally
	stmt := `SELECT
		COUNT(*) FILTER (WHERE LOWER(vote) = 'yes') AS yes,
		COUNT(*) FILTER (WHERE LOWER(vote) = 'no')  AS no
	FROM feedback WHERE idea_id = ?`
	if err := r.dbs.ReadOnly.GetContext(ctx, &tally, stmt, ideaID); err != nil {
		return models.Tally{}, errors.Wrap(err, "count votes", slog.Int64("idea_id", ideaID))
	}
	return tally, nil
}

// AlignedVoters returns one entry per vote record matching the given value,
// in cast order. Duplicate voters appear once per vote they cast.
func (r *FeedbackRepository) AlignedVoters(
	ctx context.Context,
	ideaID int64,
	value models.VoteValue,
) ([]models.Voter, error) {
	var voters []models.Voter
	stmt := `SELECT member_id, member_username FROM feedback
	WHERE idea_id = ? AND LOWER(vote) = ? ORDER BY id`
	if err := r.dbs.ReadOnly.SelectContext(ctx, &voters, stmt, ideaID, string(value)); err != nil {
		return nil, errors.Wrap(err, "select aligned voters",
			slog.Int64("idea_id", ideaID), slog.String("vote", string(value)))
	}
	return voters, nil
}
