package llm

// Outcome classifies the terminal state of a completion request. Callers
// branch on kind, never on response text.
type Outcome int

const (
	// Success means a non-empty completion was returned.
	Success Outcome = iota

	// RateLimited means every configured attempt was consumed by rate
	// limiting and the service never accepted the request.
	RateLimited

	// Unavailable means the service answered with a transport or protocol
	// error, or returned a response with no choices. Not retried.
	Unavailable

	// Exhausted means all candidate endpoints and all retries were tried
	// without a usable response.
	Exhausted
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RateLimited:
		return "rate_limited"
	case Unavailable:
		return "unavailable"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Result is the terminal state of a completion request. A Result never
// carries a panic or a raised error across the client boundary: failure
// modes are values.
type Result struct {
	Outcome Outcome
	Content string // completion text, set only on Success
	Err     error  // underlying cause for non-Success outcomes, may be nil
}

// OK reports whether the request produced a usable completion.
func (r Result) OK() bool { return r.Outcome == Success }

func success(content string) Result { return Result{Outcome: Success, Content: content} }

func failure(o Outcome, err error) Result { return Result{Outcome: o, Err: err} }
