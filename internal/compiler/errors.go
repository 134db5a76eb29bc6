package compiler

import "fmt"

// ErrorKind classifies compile failures
type ErrorKind string

const (
	KindDuplicateRule        ErrorKind = "DuplicateRule"
	KindUnresolvedDependency ErrorKind = "UnresolvedDependency"
	KindCyclicDependency     ErrorKind = "CyclicDependency"
	KindInvalidPredicate     ErrorKind = "InvalidPredicate"
)

// CompileError is fatal: compilation is atomic and any failure discards
// the whole policy before any host is touched.
type CompileError struct {
	Kind   ErrorKind
	RuleID string
	Detail string
}

func (e *CompileError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("policy compile failed (%s): rule %q: %s", e.Kind, e.RuleID, e.Detail)
	}
	return fmt.Sprintf("policy compile failed (%s): %s", e.Kind, e.Detail)
}
