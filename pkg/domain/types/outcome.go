package types

// Outcome is the result of a lifecycle mutation. Rejected means a local
// precondition failed before anything was sent; Failed means the identity
// system refused or could not be reached; Unchanged means the account was
// already in the requested state.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
	OutcomeUnchanged Outcome = "unchanged"
)

// OK reports whether the mutation was applied
func (o Outcome) OK() bool {
	return o == OutcomeSuccess
}

// String returns the string representation of the outcome
func (o Outcome) String() string {
	return string(o)
}
