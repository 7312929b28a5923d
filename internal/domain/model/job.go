package model

import "time"

// JobKind identifies what a pipeline job carries.
type JobKind string

const (
	JobContribution JobKind = "contribution"
	JobReview       JobKind = "review"
)

// Job is one unit of pipeline work: classify-then-score-then-aggregate for a
// single record.
type Job struct {
	Kind         JobKind
	Contribution *Contribution
	Review       *Review
	EnqueuedAt   time.Time
}

// ID returns the record id the job carries.
func (j Job) ID() string {
	switch {
	case j.Contribution != nil:
		return j.Contribution.ID
	case j.Review != nil:
		return j.Review.ID
	}
	return ""
}

// Developer returns the developer whose profile the job affects.
func (j Job) Developer() string {
	switch {
	case j.Contribution != nil:
		return j.Contribution.Developer
	case j.Review != nil:
		return j.Review.Reviewer
	}
	return ""
}
