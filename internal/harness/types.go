package harness

// StepTrace records what one step did.
type StepTrace struct {
	Step     int      `json:"step"`
	Command  string   `json:"command"`
	Accepted bool     `json:"accepted"`
	Events   []string `json:"events"`
	State    string   `json:"state"`
	Snapshot string   `json:"snapshot"`
	Gap      string   `json:"gap,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	// Trace holds one entry per step, in order.
	Trace []StepTrace `json:"trace"`

	// Errors are the failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
