package model

import "errors"

var (
	ErrBadAction    = errors.New("bad action")
	ErrBadProtocol  = errors.New("bad protocol")
	ErrBadPortRange = errors.New("bad port range")
	ErrBadNATField  = errors.New("bad nat field")
)
