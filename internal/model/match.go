package model

// MatchStatus is the verdict of a single client case number lookup.
type MatchStatus string

const (
	MatchExact           MatchStatus = "exact"
	MatchFuzzyIOSwap     MatchStatus = "fuzzy_io_swap"
	MatchAmbiguousIOSwap MatchStatus = "ambiguous_io_swap"
	MatchUnknown         MatchStatus = "unknown"
)

// Contamination flags the presence of 'I' or 'O' glyphs in a code. It is
// diagnostic only; a contaminated code can still be an exact match.
type Contamination string

const (
	ContaminationNone  Contamination = "none"
	ContaminationIOnly Contamination = "I_only"
	ContaminationOOnly Contamination = "O_only"
	ContaminationIAndO Contamination = "I_and_O"
)

// MatchResult is the outcome of matching one raw client case number against
// the registry.
type MatchResult struct {
	OriginalCode  string        `json:"originalCode"`
	MatchedCode   *string       `json:"matchedCode"`
	Status        MatchStatus   `json:"matchStatus"`
	Confidence    float64       `json:"matchConfidence"`
	Contamination Contamination `json:"contamination"`
	Candidates    []string      `json:"candidates"`
	Notes         string        `json:"notes,omitempty"`
}

// StatusCounts aggregates match statuses across one invoice.
type StatusCounts struct {
	Exact           int `json:"exact"`
	FuzzyIOSwap     int `json:"fuzzy_io_swap"`
	Unknown         int `json:"unknown"`
	AmbiguousIOSwap int `json:"ambiguous_io_swap"`
}
