package harness

// TraceEvent records one executed step for the golden trace.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Invoke string `json:"invoke"`
	Args   []any  `json:"args,omitempty"`
	Kind   string `json:"kind,omitempty"` // declared result kind
	Value  any    `json:"value"`
	Error  string `json:"error,omitempty"` // QueryError code, or message for other errors
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
