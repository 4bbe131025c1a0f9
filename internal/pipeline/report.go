package pipeline

import (
	"time"

	"github.com/riqlabs/labmatch-cli/internal/model"
)

// Metadata summarizes a run for operators. QuotaExhausted tells them a
// coverage gap is recoverable by resuming later, not by re-running.
type Metadata struct {
	Institution            string         `json:"institution"`
	Date                   string         `json:"date"`
	RunID                  string         `json:"run_id,omitempty"`
	TotalFaculty           int            `json:"total_faculty"`
	WebsitesFound          int            `json:"websites_found"`
	WebsiteCoverage        float64        `json:"website_coverage"`
	EmailsFound            int            `json:"emails_found"`
	EmailCoverage          float64        `json:"email_coverage"`
	EmailSources           map[string]int `json:"email_sources"`
	HighConfidenceEmails   int            `json:"high_confidence_emails"`
	ResearchTopicsCoverage float64        `json:"research_topics_coverage"`
	SearchQueriesUsed      int            `json:"search_queries_used"`
	QuotaExhausted         bool           `json:"quota_exhausted"`
	DurationMinutes        float64        `json:"duration_minutes"`
}

// Report is the final output: run metadata plus the full record array.
type Report struct {
	Metadata Metadata              `json:"metadata"`
	Faculty  []model.FacultyRecord `json:"faculty"`
}

// BuildReport computes coverage statistics over the finished population.
func BuildReport(institution, runID string, records []model.FacultyRecord, queriesUsed int, quotaExhausted bool, duration time.Duration) *Report {
	meta := Metadata{
		Institution:       institution,
		Date:              time.Now().UTC().Format(time.RFC3339),
		RunID:             runID,
		TotalFaculty:      len(records),
		EmailSources:      make(map[string]int),
		SearchQueriesUsed: queriesUsed,
		QuotaExhausted:    quotaExhausted,
		DurationMinutes:   round3(duration.Minutes()),
	}

	withTopics := 0
	for _, rec := range records {
		if !rec.Website.Empty() {
			meta.WebsitesFound++
		}
		if !rec.Email.Empty() {
			meta.EmailsFound++
			meta.EmailSources[string(rec.Email.Source)]++
			if rec.Email.Confidence == model.ConfidenceHigh {
				meta.HighConfidenceEmails++
			}
		}
		if len(rec.Research.Topics) > 0 {
			withTopics++
		}
	}

	if len(records) > 0 {
		total := float64(len(records))
		meta.WebsiteCoverage = round3(float64(meta.WebsitesFound) / total)
		meta.EmailCoverage = round3(float64(meta.EmailsFound) / total)
		meta.ResearchTopicsCoverage = round3(float64(withTopics) / total)
	}

	return &Report{Metadata: meta, Faculty: records}
}
