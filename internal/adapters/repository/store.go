// Package repository persists raw records, derived results, and developer
// profiles, and keeps developers ranked by overall impact.
package repository

import (
	"context"

	"github.com/okian/devmatch/internal/domain/model"
	"github.com/okian/devmatch/internal/domain/types"
)

// Records is everything stored for one developer.
type Records struct {
	Contributions []model.ScoredContribution
	Reviews       []model.ScoredReview
}

// Store provides read/write access to pipeline state.
//
// Contributions are keyed by (developer, id) and reviews by (reviewer, id).
// Saving an existing key overwrites it.
type Store interface {
	SaveContribution(ctx context.Context, c model.ScoredContribution) error
	SaveReview(ctx context.Context, r model.ScoredReview) error

	SaveRepository(ctx context.Context, r model.Repository) error
	// Repository returns ErrNotFound for unknown repositories.
	Repository(ctx context.Context, fullName string) (model.Repository, error)

	// DeveloperRecords returns the developer's contributions and reviews.
	// Unknown developers yield empty Records.
	DeveloperRecords(ctx context.Context, developer string) (Records, error)
	// Developers lists every developer with at least one record, sorted.
	Developers(ctx context.Context) ([]string, error)

	SaveProfile(ctx context.Context, p model.DeveloperProfile) error
	// Profile returns ErrNotFound for unknown developers.
	Profile(ctx context.Context, developer string) (model.DeveloperProfile, error)
	// Profiles returns every stored profile sorted by developer.
	Profiles(ctx context.Context) ([]model.DeveloperProfile, error)

	// Rank returns the developer's position by overall impact.
	Rank(ctx context.Context, developer string) (types.Entry, error)
	// TopN returns the n highest-impact developers.
	TopN(ctx context.Context, n int) ([]types.Entry, error)
	// Count returns the number of stored profiles.
	Count(ctx context.Context) int

	Close() error
}
