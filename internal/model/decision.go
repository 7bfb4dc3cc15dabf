package model

// DecisionStatus is the terminal state of classifying one filename.
type DecisionStatus string

const (
	// DecisionAccepted means a rule's extraction was accepted.
	DecisionAccepted DecisionStatus = "ACCEPTED"
	// DecisionSkipped means the file is excluded from this run; not an error.
	DecisionSkipped DecisionStatus = "SKIPPED"
	// DecisionManual means the operator supplied the fields directly,
	// bypassing the rule set.
	DecisionManual DecisionStatus = "MANUAL"
)

// Decision is the classifier's terminal result for one filename.
type Decision struct {
	Status     DecisionStatus
	RuleName   string
	Extraction Extraction
	// FromMemory is true when the decision reused a remembered series pattern.
	FromMemory bool
}

// Accepted reports whether the file should be processed.
func (d Decision) Accepted() bool {
	return d.Status == DecisionAccepted || d.Status == DecisionManual
}
