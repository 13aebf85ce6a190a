package repositories

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/jlaasanen/dealflow/internal/db"
	"github.com/jlaasanen/dealflow/internal/errors"
	"github.com/jlaasanen/dealflow/internal/models"
)

// IdeaRepository is the store adapter for investment ideas.
type IdeaRepository struct {
	dbs    *db.Database
	logger *slog.Logger
}

func NewIdeaRepository(dbs *db.Database, logger *slog.Logger) *IdeaRepository {
	return &IdeaRepository{
		dbs:    dbs,
		logger: logger.With("source", "IdeaRepository"),
	}
}

// Create persists a new idea with status pending and a store-assigned
// creation timestamp, returning the assigned identifier.
func (r *IdeaRepository) Create(ctx context.Context, idea *models.Idea) (int64, error) {
	stmt := `INSERT INTO investment_ideas
		(topic, submitter_id, submitter_username, research_summary, thesis,
		 risk_assessment, recommendations, evaluation_score, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending')`
	result, err := r.dbs.ReadWrite.ExecContext(ctx, stmt,
		idea.Topic,
		idea.SubmitterID,
		idea.SubmitterName,
		idea.ResearchSummary,
		idea.Thesis,
		idea.RiskAssessment,
		idea.Recommendations,
		idea.EvaluationScore,
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert idea", slog.String("topic", idea.Topic))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "idea last insert id")
	}
	return id, nil
}

// Get fetches the full idea detail. A missing row yields ErrIdeaNotFound.
func (r *IdeaRepository) Get(ctx context.Context, id int64) (*models.Idea, error) {
	var idea models.Idea
	stmt := `SELECT id, topic, submitter_id, submitter_username, research_summary,
		thesis, risk_assessment, recommendations, evaluation_score, status, created_at
	FROM investment_ideas WHERE id = ?`
	if err := r.dbs.ReadOnly.GetContext(ctx, &idea, stmt, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrap(errors.ErrIdeaNotFound, "get idea", slog.Int64("idea_id", id))
		}
		return nil, errors.Wrap(err, "get idea", slog.Int64("idea_id", id))
	}
	return &idea, nil
}

// Finalize moves a pending idea to the given terminal status. It reports
// false without error when the idea was already terminal, which makes
// finalization safe to re-invoke: the bonus settlement is only run when this
// returns true.
func (r *IdeaRepository) Finalize(ctx context.Context, id int64, status models.IdeaStatus) (bool, error) {
	stmt := `UPDATE investment_ideas SET status = ? WHERE id = ? AND status = 'pending'`
	result, err := r.dbs.ReadWrite.ExecContext(ctx, stmt, status, id)
	if err != nil {
		return false, errors.Wrap(err, "update idea status",
			slog.Int64("idea_id", id), slog.String("status", string(status)))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "idea status rows affected")
	}
	return affected > 0, nil
}
