package server

import "errors"

// ErrNoSnapshot marks a query against a server with nothing loaded.
var ErrNoSnapshot = errors.New("no snapshot loaded")
