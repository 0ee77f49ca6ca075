package wsola

import "errors"

// Sentinel errors for the fatal conditions the dispatcher and player can
// hit, mirroring the teacher's ErrChannels/ErrTooLarge package-level error
// vars rather than ad-hoc fmt.Errorf strings at every call site.
var (
	// ErrShortSkip is returned when the byte source skipped fewer bytes
	// than requested before the run loop started.
	ErrShortSkip = errors.New("wsola: short skip")

	// ErrUnexpectedPartialRead is returned when a block read returned
	// fewer bytes than requested without signalling EOF and without a
	// stop in progress.
	ErrUnexpectedPartialRead = errors.New("wsola: unexpected partial read")

	// ErrIllegalStateTransition is returned by Player methods called from
	// a state that does not permit them.
	ErrIllegalStateTransition = errors.New("wsola: illegal state transition")

	// ErrSinkUnavailable is returned by Player.Play when no AudioSink has
	// been configured.
	ErrSinkUnavailable = errors.New("wsola: sink unavailable")

	// ErrNoFileLoaded is returned by Player methods that require a loaded
	// source when none is loaded.
	ErrNoFileLoaded = errors.New("wsola: no file loaded")
)
