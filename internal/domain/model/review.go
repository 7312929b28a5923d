package model

import (
	"fmt"
	"strings"
	"time"
)

// ReviewState is the final state of a code review.
type ReviewState string

const (
	StateApproved         ReviewState = "APPROVED"
	StateChangesRequested ReviewState = "CHANGES_REQUESTED"
	StateCommented        ReviewState = "COMMENTED"
	StateDismissed        ReviewState = "DISMISSED"
)

// Valid reports whether s is a known state.
func (s ReviewState) Valid() bool {
	switch s {
	case StateApproved, StateChangesRequested, StateCommented, StateDismissed:
		return true
	}
	return false
}

// Review is one code-review event as delivered by ingestion.
type Review struct {
	ID             string      `json:"id"`
	Reviewer       string      `json:"reviewer"`
	Repo           string      `json:"repo"`
	PRNumber       int         `json:"prNumber"`
	PRAuthor       string      `json:"prAuthor,omitempty"`
	State          ReviewState `json:"state"`
	CommentCount   int         `json:"commentCount"`
	CommentLength  int         `json:"totalCommentLength"`
	ReferencesCode bool        `json:"referencesCodeLines"`
	SubmittedAt    time.Time   `json:"submittedAt"`
}

// Normalize trims identities and upper-cases the state.
func (r *Review) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.Reviewer = strings.TrimSpace(r.Reviewer)
	r.Repo = strings.TrimSpace(r.Repo)
	r.PRAuthor = strings.TrimSpace(r.PRAuthor)
	r.State = ReviewState(strings.ToUpper(strings.TrimSpace(string(r.State))))
	r.SubmittedAt = r.SubmittedAt.UTC()
}

// Validate reports every invariant the record violates.
func (r Review) Validate() error {
	var v violations
	v.require(r.ID != "", "id is required")
	v.require(r.Reviewer != "", "reviewer is required")
	v.require(r.Repo != "", "repo is required")
	v.require(r.PRNumber > 0, "prNumber must be positive")
	v.require(r.State.Valid(), fmt.Sprintf("unknown state %q", r.State))
	v.require(r.CommentCount >= 0, "commentCount must be non-negative")
	v.require(r.CommentLength >= 0, "totalCommentLength must be non-negative")
	v.require(!r.SubmittedAt.IsZero(), "submittedAt is required")
	return v.err()
}

// ReviewResult holds the derived fields of a review.
type ReviewResult struct {
	DepthScore *float64 `json:"depthScore"`
	Scored     bool     `json:"scored"`
}

// ScoredReview pairs a raw review with its derived result.
type ScoredReview struct {
	Review
	Result ReviewResult `json:"result"`
}

// IsScored reports whether the depth score is present.
func (s ScoredReview) IsScored() bool { return s.Result.Scored && s.Result.DepthScore != nil }

// ReviewStats summarizes the reviews a developer has given.
type ReviewStats struct {
	ReviewsGiven       int     `json:"reviewsGiven"`
	AvgDepth           float64 `json:"avgDepth"`
	SubstantiveRatio   float64 `json:"substantiveRatio"`
	ChangeRequestRatio float64 `json:"changeRequestRatio"`
}
