package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidenceOrder(t *testing.T) {
	assert.True(t, ConfidenceHigh.Outranks(ConfidenceMedium))
	assert.True(t, ConfidenceMedium.Outranks(ConfidenceLow))
	assert.True(t, ConfidenceLow.Outranks(ConfidenceUnknown))
	assert.False(t, ConfidenceMedium.Outranks(ConfidenceMedium))
	assert.False(t, ConfidenceUnknown.Outranks(ConfidenceLow))
}

func TestParseConfidence(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, ParseConfidence("high"))
	assert.Equal(t, ConfidenceUnknown, ParseConfidence("bogus"))
	assert.Equal(t, ConfidenceUnknown, ParseConfidence(""))
}

func TestConfidenceForScore(t *testing.T) {
	tests := []struct {
		score    float64
		expected Confidence
	}{
		{0.75, ConfidenceHigh},
		{0.6, ConfidenceHigh},
		{0.45, ConfidenceMedium},
		{0.4, ConfidenceMedium},
		{0.1, ConfidenceLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ConfidenceForScore(tt.score, 0.6, 0.4), "score %v", tt.score)
	}
}

func TestParseSource(t *testing.T) {
	assert.Equal(t, SourceORCID, ParseSource("orcid"))
	assert.Equal(t, SourceUnknown, ParseSource("whatever"))
}

func TestSetEmailMergeRules(t *testing.T) {
	rec := NewFacultyRecord("Jane Doe")

	// Empty facts are never written.
	assert.False(t, rec.SetEmail(EmailFact{Source: SourceWebsite, Confidence: ConfidenceHigh}))

	// First real fact always lands.
	assert.True(t, rec.SetEmail(EmailFact{Value: "jdoe@mit.edu", Source: SourceWebsite, Confidence: ConfidenceLow}))

	// Equal confidence does not replace.
	assert.False(t, rec.SetEmail(EmailFact{Value: "other@mit.edu", Source: SourceSearch, Confidence: ConfidenceLow}))
	assert.Equal(t, "jdoe@mit.edu", rec.Email.Value)

	// Strictly higher confidence replaces.
	assert.True(t, rec.SetEmail(EmailFact{Value: "jane@mit.edu", Source: SourceORCID, Confidence: ConfidenceHigh}))
	assert.Equal(t, "jane@mit.edu", rec.Email.Value)

	// Nothing outranks HIGH.
	assert.False(t, rec.SetEmail(EmailFact{Value: "late@mit.edu", Source: SourceWebsite, Confidence: ConfidenceHigh}))
	assert.Equal(t, SourceORCID, rec.Email.Source)
}

func TestSetWebsiteMergeRules(t *testing.T) {
	rec := NewFacultyRecord("Jane Doe")

	assert.True(t, rec.SetWebsite(WebsiteFact{Value: "https://mit.edu/~jdoe", Source: SourceSearch, Confidence: ConfidenceMedium}))
	assert.False(t, rec.SetWebsite(WebsiteFact{Value: "https://example.edu/people/jdoe", Source: SourceSearch, Confidence: ConfidenceMedium}))
	assert.True(t, rec.SetWebsite(WebsiteFact{Value: "https://web.mit.edu/jdoe", Source: SourceDirectory, Confidence: ConfidenceHigh}))
	assert.Equal(t, "https://web.mit.edu/jdoe", rec.Website.Value)
}

func TestResearchProfileSummary(t *testing.T) {
	p := ResearchProfile{
		Topics: []TopicScore{{Name: "Genomics", Score: 0.9}, {Name: "CRISPR", Score: 0.8}},
	}
	assert.Equal(t, "Genomics; CRISPR", p.Summary())

	p = ResearchProfile{Concepts: []ConceptScore{{Name: "Biology", Level: 0, Score: 0.7}}}
	assert.Equal(t, "Biology", p.Summary())

	assert.Equal(t, "", ResearchProfile{}.Summary())
}
