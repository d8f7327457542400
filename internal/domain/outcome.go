package domain

// Outcome classifies the result of a ledger-changing operation. Conflicts
// and lock violations are expected results, not errors.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeConflict Outcome = "conflict"
	OutcomeLocked   Outcome = "locked"
)
