package repositories

import (
	"context"
	"log/slog"

	"github.com/jlaasanen/dealflow/internal/db"
	"github.com/jlaasanen/dealflow/internal/errors"
	"github.com/jlaasanen/dealflow/internal/models"
)

// MemberRepository is the cumulative incentive-point ledger.
type MemberRepository struct {
	dbs    *db.Database
	logger *slog.Logger
}

func NewMemberRepository(dbs *db.Database, logger *slog.Logger) *MemberRepository {
	return &MemberRepository{
		dbs:    dbs,
		logger: logger.With("source", "MemberRepository"),
	}
}

// Award adds delta points to a member's balance, creating the ledger entry on
// first award. The increment happens inside a single UPSERT so concurrent
// awards to the same member cannot lose an update.
func (r *MemberRepository) Award(ctx context.Context, memberID int64, name string, delta int64) error {
	stmt := `INSERT INTO members (member_id, username, points) VALUES (?, ?, ?)
	ON CONFLICT (member_id) DO UPDATE SET
		points   = points + excluded.points,
		username = excluded.username`
	if _, err := r.dbs.ReadWrite.ExecContext(ctx, stmt, memberID, name, delta); err != nil {
		return errors.Wrap(err, "award points",
			slog.Int64("member_id", memberID), slog.Int64("delta", delta))
	}
	return nil
}

// Leaderboard returns all ledger entries ordered by points descending.
func (r *MemberRepository) Leaderboard(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	stmt := `SELECT member_id, username, points FROM members ORDER BY points DESC, username`
	if err := r.dbs.ReadOnly.SelectContext(ctx, &members, stmt); err != nil {
		return nil, errors.Wrap(err, "select leaderboard")
	}
	return members, nil
}

// Points returns a single member's balance, zero when the member has no
// ledger entry yet.
func (r *MemberRepository) Points(ctx context.Context, memberID int64) (int64, error) {
	var points int64
	stmt := `SELECT COALESCE((SELECT points FROM members WHERE member_id = ?), 0)`
	if err := r.dbs.ReadOnly.GetContext(ctx, &points, stmt, memberID); err != nil {
		return 0, errors.Wrap(err, "select member points", slog.Int64("member_id", memberID))
	}
	return points, nil
}
