package fcgx

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// defaultChunkSize is the chunk size EncodeStream uses for PARAMS and STDIN
// when the caller doesn't override it. It matches the protocol's own cap.
const defaultChunkSize = maxContent

// defaultDrainTimeout bounds how long Execute waits to drain a cancelled
// request to END_REQUEST before giving up and poisoning the connection.
const defaultDrainTimeout = 2 * time.Second

// Option configures a Client at construction time.
type Option func(*clientConfig)

type clientConfig struct {
	logger       *logrus.Entry
	metrics      *Metrics
	chunkSize    int
	drainTimeout time.Duration
	traceID      func() string
}

func newClientConfig(opts []Option) *clientConfig {
	cfg := &clientConfig{
		logger:       logrus.NewEntry(discardLogger()),
		chunkSize:    defaultChunkSize,
		drainTimeout: defaultDrainTimeout,
		traceID:      newTraceID,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.chunkSize <= 0 || cfg.chunkSize > maxContent {
		cfg.chunkSize = defaultChunkSize
	}
	return cfg
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// WithLogger attaches a logrus entry. Every entry the client logs carries
// request_id and trace_id fields. Debug-level entries are logged after
// BEGIN_REQUEST, the PARAMS stream and the STDIN stream are sent, when
// END_REQUEST arrives, and for each discarded record with a foreign
// request_id; STDOUT and STDERR records are not logged. A Warn-level entry
// is logged when an unexpected server record (with a record_type field) or
// an undrained cancellation poisons the connection; poisoning by an I/O
// error or a non-complete END_REQUEST status is not logged.
func WithLogger(logger *logrus.Entry) Option {
	return func(cfg *clientConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMetrics attaches a Prometheus collector; see Metrics.
func WithMetrics(m *Metrics) Option {
	return func(cfg *clientConfig) {
		cfg.metrics = m
	}
}

// WithChunkSize overrides the chunk size used when streaming PARAMS and
// STDIN content. Values outside (0, 65535] are ignored in favor of the
// default.
func WithChunkSize(n int) Option {
	return func(cfg *clientConfig) {
		cfg.chunkSize = n
	}
}

// WithDrainTimeout overrides how long Execute waits to drain a cancelled
// request to END_REQUEST before poisoning the connection.
func WithDrainTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) {
		if d > 0 {
			cfg.drainTimeout = d
		}
	}
}

// WithTraceIDFunc overrides how each Execute call's correlation ID is
// generated; it exists mainly so tests can make log output deterministic.
func WithTraceIDFunc(f func() string) Option {
	return func(cfg *clientConfig) {
		if f != nil {
			cfg.traceID = f
		}
	}
}
