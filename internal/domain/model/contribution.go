// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLen bounds the stored commit message head.
const MaxMessageLen = 120

// ContributionKind distinguishes code commits from documentation work.
type ContributionKind string

const (
	KindCommit        ContributionKind = "commit"
	KindDocumentation ContributionKind = "documentation"
)

// Valid reports whether k is a known kind.
func (k ContributionKind) Valid() bool {
	return k == KindCommit || k == KindDocumentation
}

// ContributionType is the coarse category of a change.
type ContributionType string

const (
	TypeFeature        ContributionType = "feature"
	TypeBugfix         ContributionType = "bugfix"
	TypeRefactor       ContributionType = "refactor"
	TypeTest           ContributionType = "test"
	TypeDocumentation  ContributionType = "documentation"
	TypeInfrastructure ContributionType = "infrastructure"
	TypeDependency     ContributionType = "dependency"
	TypeFormatting     ContributionType = "formatting"
	TypeGenerated      ContributionType = "generated"
)

// ContributionTypes lists every known type.
var ContributionTypes = []ContributionType{
	TypeFeature, TypeBugfix, TypeRefactor, TypeTest, TypeDocumentation,
	TypeInfrastructure, TypeDependency, TypeFormatting, TypeGenerated,
}

// Valid reports whether t is a known type.
func (t ContributionType) Valid() bool {
	for _, v := range ContributionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Contribution is one commit-level unit of work as delivered by ingestion.
// It is never mutated after ingestion; derived fields live in ContributionResult.
type Contribution struct {
	ID              string           `json:"id"`
	Developer       string           `json:"developer"`
	Repo            string           `json:"repo"`
	Kind            ContributionKind `json:"kind"`
	Type            ContributionType `json:"contributionType,omitempty"`
	AuthoredAt      time.Time        `json:"authoredAt"`
	Message         string           `json:"message"`
	Additions       int              `json:"additions"`
	Deletions       int              `json:"deletions"`
	FilesChanged    int              `json:"filesChanged"`
	ComplexityDelta *float64         `json:"complexityDelta,omitempty"`
	Entropy         *float64         `json:"entropy,omitempty"`
	TestCorrelation *float64         `json:"testCorrelated,omitempty"`
	FilePaths       []string         `json:"filePaths,omitempty"`
	Languages       []string         `json:"languages,omitempty"`
}

// Lines is the total number of changed lines.
func (c Contribution) Lines() int { return c.Additions + c.Deletions }

// Normalize fills defaults and truncates the message head.
func (c *Contribution) Normalize() {
	c.ID = strings.TrimSpace(c.ID)
	c.Developer = strings.TrimSpace(c.Developer)
	c.Repo = strings.TrimSpace(c.Repo)
	if c.Kind == "" {
		c.Kind = KindCommit
	}
	c.Message = truncateRunes(strings.TrimSpace(c.Message), MaxMessageLen)
	c.AuthoredAt = c.AuthoredAt.UTC()
}

// Validate reports every invariant the record violates.
func (c Contribution) Validate() error {
	var v violations
	v.require(c.ID != "", "id is required")
	v.require(c.Developer != "", "developer is required")
	v.require(c.Repo != "", "repo is required")
	v.require(c.Kind.Valid(), fmt.Sprintf("unknown kind %q", c.Kind))
	v.require(c.Type == "" || c.Type.Valid(), fmt.Sprintf("unknown contributionType %q", c.Type))
	v.require(!c.AuthoredAt.IsZero(), "authoredAt is required")
	v.require(c.Additions >= 0, "additions must be non-negative")
	v.require(c.Deletions >= 0, "deletions must be non-negative")
	v.require(c.FilesChanged >= 0, "filesChanged must be non-negative")
	v.require(c.Entropy == nil || *c.Entropy >= 0, "entropy must be non-negative")
	v.require(c.TestCorrelation == nil || (*c.TestCorrelation >= MinTestCorrelation && *c.TestCorrelation <= MaxTestCorrelation),
		"testCorrelated must be within [-0.2, 0.3]")
	return v.err()
}

// Test-correlation signal bounds.
const (
	MinTestCorrelation = -0.2
	MaxTestCorrelation = 0.3
)

// ContributionResult holds the derived fields of a contribution, keyed by its id.
type ContributionResult struct {
	Type         ContributionType `json:"contributionType"`
	DomainTags   []string         `json:"domainTags"`
	LanguageTags []string         `json:"languageTags"`
	QualityScore *float64         `json:"qualityScore"`
	RecencyScore *float64         `json:"recencyWeightedScore"`
	RepoWeight   float64          `json:"repoWeight"`
	Classified   bool             `json:"classified"`
	Scored       bool             `json:"scored"`
}

// ScoredContribution pairs a raw contribution with its derived result.
type ScoredContribution struct {
	Contribution
	Result ContributionResult `json:"result"`
}

// IsScored reports whether both scores are present.
func (s ScoredContribution) IsScored() bool {
	return s.Result.Scored && s.Result.QualityScore != nil && s.Result.RecencyScore != nil
}

// IsDocumentation reports whether the contribution counts as documentation work.
func (s ScoredContribution) IsDocumentation() bool {
	return s.Kind == KindDocumentation || s.Result.Type == TypeDocumentation
}

// Repository is the metadata of a source repository.
type Repository struct {
	FullName    string   `json:"fullName"`
	Description string   `json:"description,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	Stars       int      `json:"stars"`
}

// Validate reports every invariant the repository violates.
func (r Repository) Validate() error {
	var v violations
	v.require(strings.TrimSpace(r.FullName) != "", "fullName is required")
	v.require(r.Stars >= 0, "stars must be non-negative")
	return v.err()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
