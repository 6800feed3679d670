package handler

import "errors"

var ErrRootActive = errors.New("root is active")
var ErrRunning = errors.New("controller is running")
