package models

import (
	"strings"
	"time"
)

// VoteValue is a yes/no poll answer.
type VoteValue string

const (
	VoteYes VoteValue = "yes"
	VoteNo  VoteValue = "no"
)

// ParseVoteValue normalises a callback payload into a VoteValue. The
// comparison is case-insensitive.
func ParseVoteValue(s string) (VoteValue, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(VoteYes):
		return VoteYes, true
	case string(VoteNo):
		return VoteNo, true
	}
	return "", false
}

// Vote is one member's answer to an idea's poll. Votes are append-only and
// never mutated.
type Vote struct {
	IdeaID     int64     `db:"idea_id"`
	MemberID   int64     `db:"member_id"`
	MemberName string    `db:"member_username"`
	Value      VoteValue `db:"vote"`
	CastAt     time.Time `db:"cast_at"`
}

// Voter identifies a member that cast a vote, used for bonus settlement.
type Voter struct {
	ID   int64  `db:"member_id"`
	Name string `db:"member_username"`
}

// Tally aggregates the yes/no counts for one idea.
type Tally struct {
	Yes int `db:"yes"`
	No  int `db:"no"`
}

// Outcome resolves the tally into a terminal status. Approval requires a
// strict majority of yes votes; ties reject.
func (t Tally) Outcome() IdeaStatus {
	if t.Yes > t.No {
		return IdeaStatusApproved
	}
	return IdeaStatusRejected
}

// AlignedValue is the vote value that matches the outcome, used for the
// alignment bonus.
func (t Tally) AlignedValue() VoteValue {
	if t.Outcome() == IdeaStatusApproved {
		return VoteYes
	}
	return VoteNo
}
