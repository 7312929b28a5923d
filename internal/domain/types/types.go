// Package types contains common types used across the application
package types

// Entry represents one developer in the impact ranking.
type Entry struct {
	Rank          int      `json:"rank"`
	Username      string   `json:"username"`
	OverallImpact *float64 `json:"overallImpact"`
}

// Stats is the pipeline snapshot served by GET /stats.
type Stats struct {
	Started         bool  `json:"started"`
	QueueLength     int   `json:"queue_len"`
	QueueCapacity   int   `json:"queue_capacity"`
	WorkerCount     int   `json:"worker_count"`
	DedupeSize      int64 `json:"dedupe_size"`
	DeveloperCount  int   `json:"developer_count"`
	VocabularySize  int   `json:"vocabulary_size"`
	ClassifierReady bool  `json:"classifier_ready"`
}

// Rejection names a record that was not accepted and why.
type Rejection struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// ReasonBackpressure is the rejection reason for records refused by a full
// queue.
const ReasonBackpressure = "queue full, retry later"

// IngestAck acknowledges one ingestion batch.
type IngestAck struct {
	Accepted   int         `json:"accepted"`
	Duplicates int         `json:"duplicates"`
	Rejected   []Rejection `json:"rejected"`
	// Throttled counts rejections caused by queue backpressure.
	Throttled int `json:"-"`
}

// NewIngestAck returns an ack with a non-nil rejection list.
func NewIngestAck() IngestAck {
	return IngestAck{Rejected: []Rejection{}}
}

// Reject appends a rejection.
func (a *IngestAck) Reject(id, reason string) {
	a.Rejected = append(a.Rejected, Rejection{ID: id, Reason: reason})
}
