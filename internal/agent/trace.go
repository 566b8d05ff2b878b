package agent

// TraceEntry is one tick of navigator state, written while a goal is active or
// when something happened.
type TraceEntry struct {
	Tick       uint64     `json:"tick"`
	Pos        [3]float64 `json:"pos"`
	Goal       *[3]int    `json:"goal,omitempty"`
	Searching  bool       `json:"searching,omitempty"`
	Expansions int        `json:"expansions,omitempty"`
	Waypoints  int        `json:"waypoints,omitempty"`
	Result     string     `json:"result,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Events     []string   `json:"events,omitempty"`
}

type TraceSink interface {
	WriteTrace(TraceEntry) error
}

// Reporter is the human-readable diagnostics channel (chat, log).
type Reporter interface {
	Report(text string)
}

type ReporterFunc func(text string)

func (f ReporterFunc) Report(text string) { f(text) }

// Metrics receives navigation counters. *metrics.Recorder implements it.
type Metrics interface {
	SearchFinished(outcome string, ticks int)
	Expanded(n int)
	FollowTerminal(result, reason string)
	Recalculated()
	Waypoints(n int)
}

type noMetrics struct{}

func (noMetrics) SearchFinished(string, int)    {}
func (noMetrics) Expanded(int)                  {}
func (noMetrics) FollowTerminal(string, string) {}
func (noMetrics) Recalculated()                 {}
func (noMetrics) Waypoints(int)                 {}
