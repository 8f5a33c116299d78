package deliberation

// Proposal is the immutable subject of a deliberation session. Fields carries
// the named parameters (budget, timeline, staffing, ...) that parametrize
// participant reasoning; the engine never interprets them.
type Proposal struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// Persona is the configuration record for one committee seat. Personas are
// data consumed by the external reasoning collaborator, not behavior: the
// engine treats every participant identically.
type Persona struct {
	ID                 string   `json:"id"`
	Role               string   `json:"role"`
	EvaluationCriteria []string `json:"evaluation_criteria,omitempty"`
	Priorities         []string `json:"priorities,omitempty"`

	// Weight feeds the weighted voting protocols; <= 0 means default 1.0.
	Weight float64 `json:"weight,omitempty"`
}
