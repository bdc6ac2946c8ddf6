package fcgx

import (
	"bytes"
	"io"
)

// Request pairs a parameter set with a lazy request body. Both are consumed
// by value when passed to (*Client).Execute; neither is shared afterward.
type Request struct {
	Params *Params
	Body   io.Reader
}

// NewRequest builds a Request from params and body. A nil body is treated
// as an empty STDIN stream (the terminator record is still sent).
func NewRequest(params *Params, body io.Reader) *Request {
	if params == nil {
		params = NewParams()
	}
	if body == nil {
		body = bytes.NewReader(nil)
	}
	return &Request{Params: params, Body: body}
}
