package watch

import "errors"

// ErrContainedFault marks a pass that was aborted by a recovered panic.
var ErrContainedFault = errors.New("contained fault")
