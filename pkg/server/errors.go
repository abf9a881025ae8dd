package server

import "errors"

var (
	errMissingPageURL = errors.New("missing url parameter")
	errInvalidPageURL = errors.New("url parameter must be an absolute http(s) URL")
)
