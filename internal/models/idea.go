package models

import "time"

// IdeaStatus is the lifecycle status of an investment idea. An idea starts as
// pending and moves exactly once to approved or rejected via finalization.
type IdeaStatus string

const (
	IdeaStatusPending  IdeaStatus = "pending"
	IdeaStatusApproved IdeaStatus = "approved"
	IdeaStatusRejected IdeaStatus = "rejected"
)

// Idea is a submitted investment topic together with its generated evaluation
// package. The store owns the authoritative copy; the rest of the system only
// passes the ID around.
type Idea struct {
	ID              int64      `db:"id"`
	Topic           string     `db:"topic"`
	SubmitterID     int64      `db:"submitter_id"`
	SubmitterName   string     `db:"submitter_username"`
	ResearchSummary string     `db:"research_summary"`
	Thesis          string     `db:"thesis"`
	RiskAssessment  string     `db:"risk_assessment"`
	Recommendations string     `db:"recommendations"`
	EvaluationScore float64    `db:"evaluation_score"`
	Status          IdeaStatus `db:"status"`
	CreatedAt       time.Time  `db:"created_at"`
}
