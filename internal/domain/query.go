package domain

// MedicalQuery is the immutable input to the answer pipeline.
type MedicalQuery struct {
	Question       string
	Biomarkers     map[string]float64
	PatientContext string
}

// HasBiomarkers reports whether the query carries a structured biomarker
// payload. A non-empty payload is itself a domain signal: such requests are
// in-scope by construction and skip the guardrail judge.
func (q MedicalQuery) HasBiomarkers() bool {
	return len(q.Biomarkers) > 0
}

// GradingResult is a per-document binary relevance judgment produced by one
// grading pass. Ephemeral; never persisted past a pipeline invocation.
type GradingResult struct {
	DocID      string
	IsRelevant bool
}
