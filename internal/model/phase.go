package model

import "github.com/rotisserie/eris"

// Phase names one stage of the enrichment pipeline. Phases have a strict
// total order; a checkpoint for phase P implies all earlier phases ran.
type Phase string

const (
	PhaseExtract        Phase = "extract"
	PhaseDirectories    Phase = "directories"
	PhaseWebsites       Phase = "websites"
	PhaseOrcidEmails    Phase = "orcid_emails"
	PhaseWebsiteEmails  Phase = "website_emails"
	PhaseFallbackEmails Phase = "fallback_emails"
	PhaseDone           Phase = "done"
)

// AllPhases lists the runnable phases in execution order. PhaseDone is a
// terminal marker, not a runnable phase.
var AllPhases = []Phase{
	PhaseExtract,
	PhaseDirectories,
	PhaseWebsites,
	PhaseOrcidEmails,
	PhaseWebsiteEmails,
	PhaseFallbackEmails,
}

// Order returns the position of p in the pipeline, or -1 for an unknown phase.
func (p Phase) Order() int {
	for i, ph := range AllPhases {
		if ph == p {
			return i
		}
	}
	if p == PhaseDone {
		return len(AllPhases)
	}
	return -1
}

// Before reports whether p executes strictly before other.
func (p Phase) Before(other Phase) bool {
	return p.Order() < other.Order()
}

// ParsePhase validates a phase name from user input or a checkpoint file.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if p.Order() >= 0 {
		return p, nil
	}
	return "", eris.Errorf("model: unknown phase %q", s)
}
