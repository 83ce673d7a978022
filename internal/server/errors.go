package server

import "errors"

var ErrServerClosed = errors.New("feed is closed")
