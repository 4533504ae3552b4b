package ups

import "errors"

var (
	// ErrEncode is returned when a snapshot cannot be serialised.
	ErrEncode = errors.New("ups: encoding snapshot")

	// ErrDecode is returned when a payload is not a valid snapshot.
	ErrDecode = errors.New("ups: decoding snapshot")

	// ErrNoFields is returned when pwrstat output contains no status fields,
	// typically because pwrstatd is not running or no UPS is attached.
	ErrNoFields = errors.New("ups: pwrstat output has no status fields")

	// ErrCommandFailed is returned when the pwrstat command cannot be run.
	ErrCommandFailed = errors.New("ups: pwrstat command failed")
)
