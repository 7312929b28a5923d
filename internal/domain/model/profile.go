package model

import "time"

// QualityMetrics is the scorer's input tuple derived from a contribution and
// its repository. Nil pointers mean the signal is unavailable.
type QualityMetrics struct {
	ComplexityDelta *float64
	Entropy         *float64
	TestCorrelation *float64
	RepoWeight      float64
	Lines           int
}

// Scores are the profile-level sub-scores. Nil means no evidence.
type Scores struct {
	OverallImpact        *float64 `json:"overallImpact"`
	CodeQuality          *float64 `json:"codeQuality"`
	ReviewQuality        *float64 `json:"reviewQuality"`
	DocumentationQuality *float64 `json:"documentationQuality"`
	CollaborationBreadth *float64 `json:"collaborationBreadth"`
	Consistency          *float64 `json:"consistencyScore"`
	RecentActivity       *float64 `json:"recentActivityScore"`
}

// DomainScore is one per-domain entry of a profile.
type DomainScore struct {
	Domain            string  `json:"domain"`
	Score             float64 `json:"score"`
	ContributionCount int     `json:"contributionCount"`
	EvidenceRepos     string  `json:"evidenceRepos"`
}

// LanguageScore is one per-language entry of a profile.
type LanguageScore struct {
	Language          string  `json:"language"`
	Score             float64 `json:"score"`
	ContributionCount int     `json:"contributionCount"`
}

// DeveloperProfile is the aggregate view of one developer.
type DeveloperProfile struct {
	Developer string `json:"username"`
	Scores
	Domains           []DomainScore   `json:"domains"`
	Languages         []LanguageScore `json:"languages"`
	ReviewStats       ReviewStats     `json:"reviewStats"`
	ContributionCount int             `json:"contributionCount"`
	Repositories      int             `json:"repositories"`
	LastActiveAt      *time.Time      `json:"lastActiveAt"`
}

// Domain returns the entry for tag, if present.
func (p DeveloperProfile) Domain(tag string) (DomainScore, bool) {
	for _, d := range p.Domains {
		if d.Domain == tag {
			return d, true
		}
	}
	return DomainScore{}, false
}

// DomainSummary aggregates one domain across all profiles.
type DomainSummary struct {
	Domain         string  `json:"domain"`
	DeveloperCount int     `json:"developerCount"`
	AvgScore       float64 `json:"avgScore"`
}

// RankedProfile is a profile together with its impact rank.
type RankedProfile struct {
	DeveloperProfile
	Rank int `json:"rank"`
}
