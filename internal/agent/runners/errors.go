package runner

import "errors"

var ErrUnknownProbeType = errors.New("unknown probe type")
var ErrNoReply = errors.New("no reply")
