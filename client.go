package fcgx

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// connMode distinguishes a keep-alive connection from a short-lived one.
// It is a plain field rather than a type parameter: both express the same
// distinction, and a field keeps the public API free of generics for a
// detail callers never need to see.
type connMode int

const (
	shortLived connMode = iota
	keepAlive
)

// Client drives one FastCGI request/response exchange at a time over a
// duplex byte stream. It is not safe for concurrent Execute calls; the
// internal mutex serializes them rather than corrupting the wire, but
// callers wanting parallelism should use separate connections.
type Client struct {
	mu     sync.Mutex
	rwc    io.ReadWriteCloser
	mode   connMode
	cfg    *clientConfig
	nextID uint16
	used   bool
	closed bool
	poison bool
}

// NewShortLived wraps rwc in a Client whose connection is used for exactly
// one Execute call. After that call (success or failure) the client
// surrenders ownership of rwc; it is the caller's responsibility to close
// it. A second Execute call returns ErrClientClosed.
func NewShortLived(rwc io.ReadWriteCloser, opts ...Option) *Client {
	return &Client{rwc: rwc, mode: shortLived, nextID: 1, cfg: newClientConfig(opts)}
}

// NewKeepAlive wraps rwc in a Client that may carry any number of
// sequential requests, each with a freshly assigned request ID, as long as
// no request ever fails with an I/O error, an unexpected server record, an
// END_REQUEST status other than RequestComplete, or an undrained
// cancellation.
func NewKeepAlive(rwc io.ReadWriteCloser, opts ...Option) *Client {
	return &Client{rwc: rwc, mode: keepAlive, nextID: 1, cfg: newClientConfig(opts)}
}

// Close closes the underlying transport. It is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rwc.Close()
}

// assignID returns the next request ID, wrapping past 0xFFFF back to 1; 0
// is reserved for management records and is never assigned.
func (c *Client) assignID() uint16 {
	id := c.nextID
	if c.nextID == 0xFFFF {
		c.nextID = 1
	} else {
		c.nextID++
	}
	return id
}

type deadliner interface {
	SetDeadline(time.Time) error
}

type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

// Execute drives one full request/response exchange: BEGIN_REQUEST, the
// PARAMS stream, the STDIN stream, then the receive loop that assembles
// STDOUT/STDERR until END_REQUEST. req is consumed by value; neither
// req.Params nor req.Body is safe to reuse afterward.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.closed {
		return nil, ErrClientClosed
	}
	if c.mode == shortLived && c.used {
		return nil, ErrClientClosed
	}
	if c.poison {
		return nil, ErrConnectionPoisoned
	}
	c.used = true

	if dl, ok := ctx.Deadline(); ok {
		if d, ok := c.rwc.(deadliner); ok {
			if err := d.SetDeadline(dl); err != nil {
				return nil, newIOError("set deadline", err)
			}
			defer d.SetDeadline(time.Time{})
		}
	}

	reqID := c.assignID()
	log := c.cfg.logger.WithFields(logrus.Fields{
		"request_id": reqID,
		"trace_id":   c.cfg.traceID(),
	})
	start := time.Now()

	resp, err := c.sendAndReceive(ctx, reqID, req, log)
	c.cfg.metrics.observeDuration(time.Since(start).Seconds())
	return resp, err
}

func (c *Client) sendAndReceive(ctx context.Context, reqID uint16, req *Request, log *logrus.Entry) (*Response, error) {
	if err := c.sendRequest(ctx, reqID, req, log); err != nil {
		return nil, err
	}
	return c.receiveResponse(ctx, reqID, log)
}

func (c *Client) sendRequest(ctx context.Context, reqID uint16, req *Request, log *logrus.Entry) error {
	var flags byte
	if c.mode == keepAlive {
		flags = 1
	}
	begin := [8]byte{byte(RoleResponder >> 8), byte(RoleResponder), flags}
	if err := EncodeRecord(c.rwc, BeginRequest, reqID, begin[:]); err != nil {
		return c.poisonIO("begin_request", err)
	}
	c.cfg.metrics.incWritten()
	log.Debug("fcgx: sent BEGIN_REQUEST")

	if err := ctx.Err(); err != nil {
		c.abortAndDrain(reqID, log)
		return err
	}

	paramsContent := EncodeParams(req.Params)
	if err := EncodeStream(c.rwc, Params, reqID, bytes.NewReader(paramsContent), c.cfg.chunkSize); err != nil {
		return c.poisonIO("params", err)
	}
	c.cfg.metrics.incWritten()
	log.Debug("fcgx: sent PARAMS")

	if err := ctx.Err(); err != nil {
		c.abortAndDrain(reqID, log)
		return err
	}

	if err := EncodeStream(c.rwc, Stdin, reqID, req.Body, c.cfg.chunkSize); err != nil {
		return c.poisonIO("stdin", err)
	}
	c.cfg.metrics.incWritten()
	log.Debug("fcgx: sent STDIN")

	if err := ctx.Err(); err != nil {
		c.abortAndDrain(reqID, log)
		return err
	}
	return nil
}

func (c *Client) receiveResponse(ctx context.Context, reqID uint16, log *logrus.Entry) (*Response, error) {
	rb := &responseBuilder{}

	for {
		if err := ctx.Err(); err != nil {
			c.abortAndDrain(reqID, log)
			return nil, err
		}

		h, err := DecodeHeader(c.rwc)
		if err != nil {
			return nil, c.poisonIO("decode_header", err)
		}
		c.cfg.metrics.incRead()

		content, err := DecodeContent(c.rwc, h)
		if err != nil {
			return nil, c.poisonIO("decode_content", err)
		}

		if h.RequestID != reqID {
			// Defensive discard: management records legitimately use id 0
			// and multiplexing is not used, but a server may still send
			// one.
			log.WithField("other_request_id", h.RequestID).Debug("fcgx: discarding record for foreign request_id")
			continue
		}

		switch h.Type {
		case Stdout:
			rb.writeStdout(content)
		case Stderr:
			rb.writeStderr(content)
		case EndRequestType:
			return c.finishEndRequest(content, rb, log)
		default:
			c.poison = true
			c.cfg.metrics.incPoisoned()
			log.WithField("record_type", h.Type.String()).Warn("fcgx: unexpected record from server; poisoning connection")
			return nil, &UnexpectedServerRecordError{Type: h.Type}
		}
	}
}

func (c *Client) finishEndRequest(content []byte, rb *responseBuilder, log *logrus.Entry) (*Response, error) {
	if len(content) < 8 {
		return nil, c.poisonIO("end_request", io.ErrUnexpectedEOF)
	}
	appStatus := binary.BigEndian.Uint32(content[0:4])
	protoStatus := normalizeProtocolStatus(content[4])
	log.WithField("protocol_status", protoStatus.String()).Debug("fcgx: received END_REQUEST")

	if protoStatus != RequestComplete {
		// Conservative: even CantMpxConn/Overloaded might not doom the
		// connection, but this client treats any non-complete status as
		// poisoning it.
		c.poison = true
		c.cfg.metrics.incPoisoned()
		return nil, &EndRequestError{ProtocolStatus: protoStatus, AppStatus: appStatus}
	}
	return rb.build(), nil
}

// abortAndDrain best-effort emits ABORT_REQUEST for reqID, then tries to
// drain the connection to END_REQUEST within the configured drain timeout.
// If it can't, the connection is poisoned: a keep-alive client must not be
// reused after an undrained cancellation.
func (c *Client) abortAndDrain(reqID uint16, log *logrus.Entry) {
	_ = EncodeRecord(c.rwc, AbortRequest, reqID, nil)

	if rd, ok := c.rwc.(readDeadliner); ok {
		_ = rd.SetReadDeadline(time.Now().Add(c.cfg.drainTimeout))
		defer rd.SetReadDeadline(time.Time{})
	}

	for {
		h, err := DecodeHeader(c.rwc)
		if err != nil {
			break
		}
		_, err = DecodeContent(c.rwc, h)
		if err != nil {
			break
		}
		if h.RequestID == reqID && h.Type == EndRequestType {
			log.Debug("fcgx: drained cancelled request to END_REQUEST; connection still usable")
			return
		}
	}

	c.poison = true
	c.cfg.metrics.incPoisoned()
	log.Warn("fcgx: connection poisoned: could not drain cancelled request to END_REQUEST")
}

func (c *Client) poisonIO(op string, cause error) error {
	c.poison = true
	c.cfg.metrics.incPoisoned()
	return newIOError(op, cause)
}
