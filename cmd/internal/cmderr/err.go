package cmderr

// AssemblerErr wraps an error that should not trigger a usage reprint when
// surfaced by cobra (as opposed to a flag-parsing error, which should).
type AssemblerErr struct {
	Err error
}

func (a AssemblerErr) Error() string {
	return a.Err.Error()
}

// github.com/pkg/errors causer interface
func (a AssemblerErr) Cause() error {
	return a.Err
}

// github.com/pkg/errors Unwrap interface
func (a AssemblerErr) Unwrap() error {
	return a.Err
}
