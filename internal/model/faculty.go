package model

import (
	"strings"
	"time"
)

// TopicScore is a weighted research topic from the bibliometric catalog.
type TopicScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ConceptScore is a weighted, leveled research concept. Level 0 concepts
// are top-level fields.
type ConceptScore struct {
	Name  string  `json:"name"`
	Level int     `json:"level"`
	Score float64 `json:"score"`
}

// ResearchProfile summarizes a person's research output.
type ResearchProfile struct {
	Topics      []TopicScore   `json:"topics,omitempty"`
	Concepts    []ConceptScore `json:"concepts,omitempty"`
	Fields      []string       `json:"fields,omitempty"`
	Keywords    []string       `json:"keywords,omitempty"`
	Description string         `json:"description,omitempty"`
}

// Summary returns a short semicolon-joined topic list for display and export.
func (r ResearchProfile) Summary() string {
	if len(r.Topics) > 0 {
		names := make([]string, 0, 5)
		for _, t := range r.Topics {
			names = append(names, t.Name)
			if len(names) == 5 {
				break
			}
		}
		return strings.Join(names, "; ")
	}
	if len(r.Concepts) > 0 {
		names := make([]string, 0, 5)
		for _, c := range r.Concepts {
			names = append(names, c.Name)
			if len(names) == 5 {
				break
			}
		}
		return strings.Join(names, "; ")
	}
	return ""
}

// FacultyRecord is one resolved person: identity, bibliometric stats,
// research profile, and contact facts. It is created once during seed
// extraction and mutated in place (fact fields only) by later phases.
type FacultyRecord struct {
	Name          string          `json:"name"`
	OpenAlexID    string          `json:"openalex_id,omitempty"`
	ORCID         string          `json:"orcid,omitempty"`
	Institution   string          `json:"institution"`
	InstitutionID string          `json:"institution_id,omitempty"`
	HIndex        int             `json:"h_index"`
	I10Index      int             `json:"i10_index"`
	WorksCount    int             `json:"works_count"`
	CitedByCount  int             `json:"cited_by_count"`
	Research      ResearchProfile `json:"research"`
	Email         EmailFact       `json:"email"`
	Website       WebsiteFact     `json:"website"`
	ExtractionDate string         `json:"extraction_date"`
	NeedsReview   bool            `json:"needs_review"`
	ReviewNotes   string          `json:"review_notes,omitempty"`
}

// NewFacultyRecord creates a record with the required name and a stamped
// extraction date. Fact fields start empty with unknown provenance.
func NewFacultyRecord(name string) FacultyRecord {
	return FacultyRecord{
		Name:           name,
		Email:          EmailFact{Source: SourceUnknown, Confidence: ConfidenceUnknown},
		Website:        WebsiteFact{Source: SourceUnknown, Confidence: ConfidenceUnknown},
		ExtractionDate: time.Now().UTC().Format(time.RFC3339),
	}
}

// SetEmail writes the fact only if the record has no email yet or the new
// fact carries strictly higher confidence. Returns whether it was written.
func (f *FacultyRecord) SetEmail(fact EmailFact) bool {
	if fact.Empty() {
		return false
	}
	if !f.Email.Empty() && !fact.Confidence.Outranks(f.Email.Confidence) {
		return false
	}
	f.Email = fact
	return true
}

// SetWebsite writes the fact only if the record has no website yet or the
// new fact carries strictly higher confidence. Returns whether it was written.
func (f *FacultyRecord) SetWebsite(fact WebsiteFact) bool {
	if fact.Empty() {
		return false
	}
	if !f.Website.Empty() && !fact.Confidence.Outranks(f.Website.Confidence) {
		return false
	}
	f.Website = fact
	return true
}
