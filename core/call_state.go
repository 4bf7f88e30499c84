package core

// CallState is the lifecycle stage of a call.
type CallState int

const (
	CallStateUnknown CallState = iota
	CallStateExecuting
	CallStateExecutingFailed
	CallStateRetrieving
	CallStateRetrievingFailed
	CallStateSucceeded
	CallStateCanceled
)

var callStateNames = map[CallState]string{
	CallStateUnknown:          "unknown",
	CallStateExecuting:        "executing",
	CallStateExecutingFailed:  "executing_failed",
	CallStateRetrieving:       "retrieving",
	CallStateRetrievingFailed: "retrieving_failed",
	CallStateSucceeded:        "succeeded",
	CallStateCanceled:         "canceled",
}

func (s CallState) String() string {
	if name, ok := callStateNames[s]; ok {
		return name
	}
	return callStateNames[CallStateUnknown]
}

// IsFinal reports whether no further state changes can happen.
func (s CallState) IsFinal() bool {
	switch s {
	case CallStateExecutingFailed, CallStateRetrievingFailed, CallStateSucceeded, CallStateCanceled:
		return true
	}
	return false
}
