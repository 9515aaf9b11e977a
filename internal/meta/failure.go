package meta

import "fmt"

// Failure reason codes. These are expected control-flow outcomes, not
// exceptional errors.
const (
	ReasonInsufficientDTUs    = "insufficient_dtus"
	ReasonInsufficientDomains = "insufficient_domains"
	ReasonDailyCapReached     = "daily_meta_dtu_cap_reached"
	ReasonCycleInProgress     = "cycle_in_progress"
	ReasonTextTooShort        = "text_required_min_10_chars"
)

// Failure is a structured precondition failure with an explicit reason code
// and context. It implements error so callers can propagate it, but it
// signals expected control flow rather than a fault.
type Failure struct {
	Reason string
	Detail map[string]any
}

func (f *Failure) Error() string {
	if len(f.Detail) == 0 {
		return f.Reason
	}
	return fmt.Sprintf("%s %v", f.Reason, f.Detail)
}

// Fail builds a Failure with optional key/value detail pairs
func Fail(reason string, kv ...any) *Failure {
	f := &Failure{Reason: reason}
	if len(kv) > 0 {
		f.Detail = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				continue
			}
			f.Detail[key] = kv[i+1]
		}
	}
	return f
}

// FailureReason extracts the reason code from an error, or "" if the error
// is not a Failure.
func FailureReason(err error) string {
	if f, ok := err.(*Failure); ok {
		return f.Reason
	}
	return ""
}
