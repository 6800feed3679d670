package client

import (
	"errors"
)

var ErrQueueFull = errors.New("publish queue is full")
var ErrPublisherClosed = errors.New("publisher is closed")
