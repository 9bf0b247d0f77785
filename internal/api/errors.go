package api

import "errors"

// ErrInvalidRequest marks request validation failures.
var ErrInvalidRequest = errors.New("invalid_request")

// requestError is a validation failure tied to one request field.
type requestError struct {
	param string
	msg   string
}

func (e requestError) Error() string { return e.msg }

func (e requestError) Unwrap() error { return ErrInvalidRequest }

func newInvalidRequest(msg string) error {
	return requestError{msg: msg}
}

func newInvalidParam(param, msg string) error {
	return requestError{param: param, msg: msg}
}

// errorParam returns the field an error refers to, or fallback.
func errorParam(err error, fallback string) string {
	var re requestError
	if errors.As(err, &re) && re.param != "" {
		return re.param
	}
	return fallback
}
