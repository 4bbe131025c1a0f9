package model

// Confidence grades how much we trust an extracted fact.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceUnknown Confidence = "unknown"
)

// Rank returns the position of c in the confidence order. Higher is better.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// Outranks reports whether c is strictly more trustworthy than other.
func (c Confidence) Outranks(other Confidence) bool {
	return c.Rank() > other.Rank()
}

// ParseConfidence maps a serialized confidence string back to the enum.
// Unrecognized values collapse to ConfidenceUnknown.
func ParseConfidence(s string) Confidence {
	switch Confidence(s) {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return Confidence(s)
	default:
		return ConfidenceUnknown
	}
}

// ConfidenceForScore maps a heuristic score to a confidence level using
// two thresholds: >= high yields HIGH, >= medium yields MEDIUM, else LOW.
func ConfidenceForScore(score, high, medium float64) Confidence {
	switch {
	case score >= high:
		return ConfidenceHigh
	case score >= medium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Source identifies the extraction channel that produced a fact.
type Source string

const (
	SourceOpenAlex  Source = "openalex"
	SourceWebsite   Source = "website"
	SourceSearch    Source = "search"
	SourceORCID     Source = "orcid"
	SourceDirectory Source = "directory"
	SourceFallback  Source = "fallback"
	SourceUnknown   Source = "unknown"
)

// ParseSource maps a serialized source string back to the enum.
func ParseSource(s string) Source {
	switch Source(s) {
	case SourceOpenAlex, SourceWebsite, SourceSearch, SourceORCID, SourceDirectory, SourceFallback:
		return Source(s)
	default:
		return SourceUnknown
	}
}

// EmailFact is one extracted email plus its provenance.
type EmailFact struct {
	Value            string     `json:"value,omitempty"`
	Source           Source     `json:"source"`
	Confidence       Confidence `json:"confidence"`
	ExtractedFrom    string     `json:"extracted_from,omitempty"`
	ExtractionMethod string     `json:"extraction_method,omitempty"`
	NameMatchScore   float64    `json:"name_match_score"`
}

// Empty reports whether the fact carries no value.
func (f EmailFact) Empty() bool {
	return f.Value == ""
}

// WebsiteFact is one extracted personal/lab page plus its provenance.
type WebsiteFact struct {
	Value      string     `json:"value,omitempty"`
	Source     Source     `json:"source"`
	Confidence Confidence `json:"confidence"`
	Score      float64    `json:"score"`
	Signals    []string   `json:"signals,omitempty"`
	PageType   string     `json:"page_type,omitempty"`
}

// Empty reports whether the fact carries no value.
func (f WebsiteFact) Empty() bool {
	return f.Value == ""
}
