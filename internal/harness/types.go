package harness

// Trace kinds.
const (
	KindBroadcast = "broadcast"
	KindDeliver   = "deliver"
	KindResolve   = "resolve"
	KindStatus    = "status"
	KindClear     = "clear"
)

// TraceEvent is one observable step of a scenario run.
type TraceEvent struct {
	Seq       int64          `json:"seq"`
	Tab       string         `json:"tab"`
	Kind      string         `json:"kind"`
	Type      string         `json:"type,omitempty"`
	Source    string         `json:"source,omitempty"`
	Version   int64          `json:"version,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
	Payload   any            `json:"payload,omitempty"`
	RecordID  string         `json:"record_id,omitempty"`
	Strategy  string         `json:"strategy,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Status    string         `json:"status,omitempty"`
}

// TabState is a tab's final state after a run.
type TabState struct {
	Status        string `json:"status"`
	QueueSize     int    `json:"queueSize"`
	ConflictCount int    `json:"conflictCount"`
	Broadcasts    int64  `json:"broadcasts"`
	Received      int64  `json:"received"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent        `json:"trace"`
	Errors []string            `json:"errors,omitempty"`
	Tabs   map[string]TabState `json:"tabs"`
}

// NewResult creates a passing, empty result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Tabs:   make(map[string]TabState),
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// insertTrace places e at index pos, shifting later events.
func (r *Result) insertTrace(pos int, e TraceEvent) {
	r.Trace = append(r.Trace, TraceEvent{})
	copy(r.Trace[pos+1:], r.Trace[pos:])
	r.Trace[pos] = e
}

// numberTrace assigns sequence numbers in trace order, starting at 1.
func (r *Result) numberTrace() {
	for i := range r.Trace {
		r.Trace[i].Seq = int64(i + 1)
	}
}
