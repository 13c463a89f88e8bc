package ingest

import "errors"

// Record-level context errors. These reject the offending record into the
// invalid collection; sibling records continue.
var (
	ErrMissingRegister  = errors.New("no register provided")
	ErrMissingSchema    = errors.New("no schema provided")
	ErrUnknownSchema    = errors.New("schema not found")
	ErrRequiredProperty = errors.New("required property missing")
)
