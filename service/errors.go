package service

import "errors"

type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindNotFound
)

// RequestError is a validation failure the caller can fix. Any other error
// coming out of this package is internal.
type RequestError struct {
	Kind    Kind
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func badRequest(msg string) error { return &RequestError{Kind: KindBadRequest, Message: msg} }
func notFound(msg string) error { return &RequestError{Kind: KindNotFound, Message: msg} }

// AsRequestError unwraps err into a *RequestError when it is one.
func AsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	ok := errors.As(err, &re)
	return re, ok
}
