package models

// Member is a ledger entry holding a member's cumulative incentive points.
// Points never decrease; there is no penalty path.
type Member struct {
	ID     int64  `db:"member_id"`
	Name   string `db:"username"`
	Points int64  `db:"points"`
}
