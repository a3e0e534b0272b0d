package server

import "errors"

// errNothingToServe is returned when the control API has no handler or no
// listen address. Callers treat it as "run without a control API".
var errNothingToServe = errors.New("control API is disabled: no handler or listen address")

// IsDisabled reports whether err means the control API was not configured.
func IsDisabled(err error) bool {
	return errors.Is(err, errNothingToServe)
}
