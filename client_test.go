package fcgx

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainRequest reads BEGIN_REQUEST, the PARAMS stream, and the STDIN
// stream off r (stopping at each stream's terminator), and returns the
// request_id the client assigned.
func drainRequest(t *testing.T, r io.Reader) uint16 {
	t.Helper()

	begin, err := DecodeHeader(r)
	require.NoError(t, err)
	require.Equal(t, BeginRequest, begin.Type)
	_, err = DecodeContent(r, begin)
	require.NoError(t, err)

	for _, typ := range []RecordType{Params, Stdin} {
		for {
			h, err := DecodeHeader(r)
			require.NoError(t, err)
			require.Equal(t, typ, h.Type)
			_, err = DecodeContent(r, h)
			require.NoError(t, err)
			if h.ContentLength == 0 {
				break
			}
		}
	}
	return begin.RequestID
}

func writeEndRequest(t *testing.T, w io.Writer, reqID uint16, appStatus uint32, status ProtocolStatus) {
	t.Helper()
	var content [8]byte
	binary.BigEndian.PutUint32(content[0:4], appStatus)
	content[4] = byte(status)
	require.NoError(t, EncodeRecord(w, EndRequestType, reqID, content[:]))
}

func simpleRequest() *Request {
	return NewRequest(NewParams().RequestMethod("GET").ScriptName("/i.php"), nil)
}

func TestExecuteHappyPath(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		reqID := drainRequest(t, server)
		require.NoError(t, EncodeRecord(server, Stdout, reqID, []byte("Content-type: text/html\r\n\r\nhello")))
		writeEndRequest(t, server, reqID, 0, RequestComplete)
	}()

	c := NewKeepAlive(client)
	resp, err := c.Execute(context.Background(), simpleRequest())
	require.NoError(t, err)
	assert.Equal(t, []byte("Content-type: text/html\r\n\r\nhello"), resp.Stdout)
	assert.Nil(t, resp.Stderr)

	<-done
}

func TestExecuteProtocolError(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		reqID := drainRequest(t, server)
		writeEndRequest(t, server, reqID, 0, UnknownRole)
	}()

	c := NewKeepAlive(client)
	resp, err := c.Execute(context.Background(), simpleRequest())
	require.Nil(t, resp)
	require.Error(t, err)

	var endErr *EndRequestError
	require.ErrorAs(t, err, &endErr)
	assert.Equal(t, UnknownRole, endErr.ProtocolStatus)
	assert.Equal(t, uint32(0), endErr.AppStatus)

	// A non-complete protocol status poisons the connection.
	_, err = c.Execute(context.Background(), simpleRequest())
	assert.ErrorIs(t, err, ErrConnectionPoisoned)
}

func TestExecuteTruncatedHeader(t *testing.T) {
	server, client := net.Pipe()

	go func() {
		drainRequest(t, server)
		_, _ = server.Write([]byte{0x01, 0x06, 0x00, 0x01}) // 4 of 8 header bytes
		server.Close()
	}()

	c := NewKeepAlive(client)
	resp, err := c.Execute(context.Background(), simpleRequest())
	require.Nil(t, resp)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
}

func TestExecuteNoStreamsWrittenLeavesBothNil(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		reqID := drainRequest(t, server)
		writeEndRequest(t, server, reqID, 0, RequestComplete)
	}()

	c := NewKeepAlive(client)
	resp, err := c.Execute(context.Background(), simpleRequest())
	require.NoError(t, err)
	assert.Nil(t, resp.Stdout)
	assert.Nil(t, resp.Stderr)
}

func TestExecuteStdoutOnlyLeavesStderrNil(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		reqID := drainRequest(t, server)
		require.NoError(t, EncodeRecord(server, Stdout, reqID, []byte("hello")))
		writeEndRequest(t, server, reqID, 0, RequestComplete)
	}()

	c := NewKeepAlive(client)
	resp, err := c.Execute(context.Background(), simpleRequest())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), resp.Stdout)
	assert.Nil(t, resp.Stderr)
}

func TestExecuteStderrWithoutStdout(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		reqID := drainRequest(t, server)
		require.NoError(t, EncodeRecord(server, Stderr, reqID, []byte("warning: x")))
		writeEndRequest(t, server, reqID, 0, RequestComplete)
	}()

	c := NewKeepAlive(client)
	resp, err := c.Execute(context.Background(), simpleRequest())
	require.NoError(t, err)
	assert.Nil(t, resp.Stdout)
	assert.Equal(t, []byte("warning: x"), resp.Stderr)
}

func TestExecuteKeepAliveAssignsFreshRequestIDs(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	ids := make(chan uint16, 2)
	go func() {
		for i := 0; i < 2; i++ {
			reqID := drainRequest(t, server)
			ids <- reqID
			writeEndRequest(t, server, reqID, 0, RequestComplete)
		}
	}()

	c := NewKeepAlive(client)
	_, err := c.Execute(context.Background(), simpleRequest())
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), simpleRequest())
	require.NoError(t, err)

	first := <-ids
	second := <-ids
	assert.Equal(t, uint16(1), first)
	assert.Equal(t, uint16(2), second)
}

func TestExecuteShortLivedSingleUse(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		reqID := drainRequest(t, server)
		writeEndRequest(t, server, reqID, 0, RequestComplete)
	}()

	c := NewShortLived(client)
	_, err := c.Execute(context.Background(), simpleRequest())
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), simpleRequest())
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestExecuteUnexpectedServerRecordPoisons(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		reqID := drainRequest(t, server)
		require.NoError(t, EncodeRecord(server, BeginRequest, reqID, []byte{0, 1, 0, 0, 0, 0, 0, 0}))
	}()

	c := NewKeepAlive(client)
	_, err := c.Execute(context.Background(), simpleRequest())
	require.Error(t, err)

	var unexpected *UnexpectedServerRecordError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, BeginRequest, unexpected.Type)

	_, err = c.Execute(context.Background(), simpleRequest())
	assert.ErrorIs(t, err, ErrConnectionPoisoned)
}

func TestExecuteForeignRequestIDDiscarded(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		reqID := drainRequest(t, server)
		// Management-style record for id 0 should be silently discarded.
		require.NoError(t, EncodeRecord(server, UnknownType, 0, []byte("noise")))
		require.NoError(t, EncodeRecord(server, Stdout, reqID, []byte("ok")))
		writeEndRequest(t, server, reqID, 0, RequestComplete)
	}()

	c := NewKeepAlive(client)
	resp, err := c.Execute(context.Background(), simpleRequest())
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), resp.Stdout)
}

func TestExecuteContextCancellationPoisonsWithoutDrain(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		drainRequest(t, server)
		// Never respond; the client should give up once its context
		// expires and, since nothing ever reaches END_REQUEST, poison
		// the connection.
		<-time.After(2 * time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewKeepAlive(client, WithDrainTimeout(20*time.Millisecond))
	_, err := c.Execute(ctx, simpleRequest())
	require.Error(t, err)

	_, err = c.Execute(context.Background(), simpleRequest())
	assert.ErrorIs(t, err, ErrConnectionPoisoned)
}
