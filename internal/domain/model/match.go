package model

// Query is a free-text project search.
type Query struct {
	Description string   `json:"description"`
	Stacks      []string `json:"stacks,omitempty"`
	Role        string   `json:"role,omitempty"`
	Limit       int      `json:"limit"`
}

// MatchResult is one ranked developer for a query.
type MatchResult struct {
	Developer string `json:"username"`
	Scores
	TopDomains   []DomainScore `json:"topDomains"`
	TopLanguages []string      `json:"topLanguages"`
	Confidence   int           `json:"matchConfidence"`
	WhyMatched   string        `json:"whyMatched"`
}
