package fcgx

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIOErrorUnwrapsToUnderlyingCause(t *testing.T) {
	_, cause := DecodeHeader(bytes.NewReader(nil))
	err := newIOError("decode_header", cause)
	assert.True(t, errors.Is(err, io.EOF))
}

func TestEndRequestErrorMessage(t *testing.T) {
	err := &EndRequestError{ProtocolStatus: UnknownRole, AppStatus: 7}
	assert.Contains(t, err.Error(), "UNKNOWN_ROLE")
	assert.Contains(t, err.Error(), "7")
}

func TestUnexpectedServerRecordErrorMessage(t *testing.T) {
	err := &UnexpectedServerRecordError{Type: GetValues}
	assert.Contains(t, err.Error(), "GET_VALUES")
}
