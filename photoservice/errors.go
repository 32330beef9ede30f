package photoservice

import "fmt"

// NetworkError reports a failed request: transport error, timeout or a
// response signalling failure
type NetworkError struct {
	URL    string
	Status int
	Msg    string
	Err    error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("Request to %s failed: %s", e.URL, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("Request to %s failed with status %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("Request to %s failed: %s", e.URL, e.Msg)
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError reports a response that does not match the expected schema
type DecodeError struct {
	Msg string
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Malformed response: %s", e.Err)
	}
	return fmt.Sprintf("Malformed response: %s", e.Msg)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
