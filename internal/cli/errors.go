package cli

import "errors"

// reported wraps an error whose message was already shown to the user.
type reported struct{ err error }

func (r reported) Error() string { return r.err.Error() }
func (r reported) Unwrap() error { return r.err }

// Reported tells main that err was already printed and only the exit status
// is left to set.
func Reported(err error) bool {
	var r reported
	return errors.As(err, &r)
}
