package core

import "errors"

// ErrRunnerClosed is returned by blocking helpers of a runner that has been shut down.
var ErrRunnerClosed = errors.New("runner is closed")
