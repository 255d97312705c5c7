package streamjoin

import (
	"github.com/cockroachdb/errors"
)

// Error kinds, per the node's error-handling contract: SchemaDuplicate is
// fatal at construction time, ExpressionEvalError aborts the node from
// whichever task hit it, InternalInvariant indicates programmer error.

// ErrSchemaDuplicate is returned from NewJoinNode when the suffixed name of
// a right-hand column collides with an existing column (§4.1).
var ErrSchemaDuplicate = errors.New("column already exists")

// newSchemaDuplicateError builds the SchemaDuplicate error with remediation
// advice, the way the teacher's own errors carry actionable hints.
func newSchemaDuplicateError(suffixed string) error {
	err := errors.Wrapf(ErrSchemaDuplicate, "column with name %q already exists", suffixed)
	return errors.WithHint(err,
		"rename the column prior to joining, or pass a different Suffix in JoinArgs")
}

// newExpressionEvalError wraps a key-selector evaluation failure with the
// morsel sequence it was evaluating, so the abort is traceable.
func newExpressionEvalError(err error, seq Seq) error {
	return errors.Wrapf(err, "evaluating key expression for morsel seq %d", seq)
}

// errNewf is a thin wrapper kept for call sites (dtype.go) that only need a
// formatted error, without importing the errors package directly everywhere.
func errNewf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// invariantf panics with an InternalInvariant error (§7): a partition-count
// mismatch or a missing left_is_build decision indicates a programmer error,
// not a recoverable runtime condition.
func invariantf(format string, args ...interface{}) {
	panic(errors.AssertionFailedf(format, args...))
}
