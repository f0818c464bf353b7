package di

import "fmt"

// InvariantError reports a DI-pass invariant violation: MIR shaped in a
// way the Collector was never supposed to hand the checker (a PartialStore
// touching more than one element, an InitOrAssign on something other than
// an InstrAssign, and so on). These never reach the user; internal/driver
// converts a panic carrying one of these into a plain error at the package
// boundary, mirroring how internal/mir/validate.go aggregates errors with
// errors.Join rather than ever panicking across a package boundary.
type InvariantError struct {
	Func string
	Msg  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("di: invariant violated in %s: %s", e.Func, e.Msg)
}

func invariant(funcName, format string, args ...any) {
	panic(&InvariantError{Func: funcName, Msg: fmt.Sprintf(format, args...)})
}

// Recover converts a panic carrying an *InvariantError into a returned
// error; any other panic value is re-raised. Callers (internal/driver) wrap
// a Checker.Run call in this at the package boundary.
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(*InvariantError); ok {
		*errp = ie
		return
	}
	panic(r)
}
