package fcgx

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
)

// ErrMalformedParams is returned by DecodeParams when the buffer ends
// mid-pair (a truncated length or a truncated name/value).
var ErrMalformedParams = errors.New("fcgx: malformed name-value pair stream")

// Params is the set of FastCGI request parameters (the PARAMS stream
// content, pre-encoding). The zero value is usable; NewParams is equivalent
// sugar that also preallocates the backing map.
//
// Params implements a fluent builder over the well-known CGI keys in
// addition to the generic Set/Del/Get. The builder methods are direct,
// un-opinionated sugar over Set for the literal key names already part of
// the FastCGI parameter convention — they do not derive anything from an
// HTTP request.
type Params struct {
	values map[string]string
}

// NewParams returns an empty, ready-to-use Params.
func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

func (p *Params) ensure() {
	if p.values == nil {
		p.values = make(map[string]string)
	}
}

// Set inserts or overwrites a parameter by key, returning p for chaining.
func (p *Params) Set(key, value string) *Params {
	p.ensure()
	p.values[key] = value
	return p
}

// Del removes a parameter by key, returning p for chaining.
func (p *Params) Del(key string) *Params {
	p.ensure()
	delete(p.values, key)
	return p
}

// Get returns the value for key and whether it was present.
func (p *Params) Get(key string) (string, bool) {
	if p.values == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Len reports the number of parameters currently set.
func (p *Params) Len() int {
	return len(p.values)
}

// Clone returns an independent copy of p.
func (p *Params) Clone() *Params {
	clone := NewParams()
	for k, v := range p.values {
		clone.values[k] = v
	}
	return clone
}

// sortedKeys returns the parameter keys in lexical order, so that wire
// traffic (and log output) is deterministic across runs even though the
// protocol gives insertion order no semantic meaning.
func (p *Params) sortedKeys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fluent setters for the well-known CGI parameter keys.

func (p *Params) RequestMethod(v string) *Params    { return p.Set("REQUEST_METHOD", v) }
func (p *Params) ScriptFilename(v string) *Params   { return p.Set("SCRIPT_FILENAME", v) }
func (p *Params) ScriptName(v string) *Params       { return p.Set("SCRIPT_NAME", v) }
func (p *Params) RequestURI(v string) *Params       { return p.Set("REQUEST_URI", v) }
func (p *Params) DocumentURI(v string) *Params      { return p.Set("DOCUMENT_URI", v) }
func (p *Params) DocumentRoot(v string) *Params     { return p.Set("DOCUMENT_ROOT", v) }
func (p *Params) ServerProtocol(v string) *Params   { return p.Set("SERVER_PROTOCOL", v) }
func (p *Params) GatewayInterface(v string) *Params { return p.Set("GATEWAY_INTERFACE", v) }
func (p *Params) RemoteAddr(v string) *Params       { return p.Set("REMOTE_ADDR", v) }
func (p *Params) RemotePort(v string) *Params       { return p.Set("REMOTE_PORT", v) }
func (p *Params) ServerAddr(v string) *Params       { return p.Set("SERVER_ADDR", v) }
func (p *Params) ServerPort(v string) *Params       { return p.Set("SERVER_PORT", v) }
func (p *Params) ServerName(v string) *Params       { return p.Set("SERVER_NAME", v) }
func (p *Params) ContentType(v string) *Params      { return p.Set("CONTENT_TYPE", v) }
func (p *Params) ContentLength(v string) *Params    { return p.Set("CONTENT_LENGTH", v) }

// HTTPHeader sets an HTTP_* parameter for the given header name, e.g.
// HTTPHeader("X-Request-Id", v) sets HTTP_X_REQUEST_ID.
func (p *Params) HTTPHeader(name, value string) *Params {
	return p.Set("HTTP_"+httpHeaderKey(name), value)
}

func httpHeaderKey(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			out[i] = c - 'a' + 'A'
		case c == '-':
			out[i] = '_'
		default:
			out[i] = c
		}
	}
	return string(out)
}

// encodeSize writes size in the FastCGI short (1-byte) or long (4-byte)
// length form to b, returning the number of bytes used. b must have at
// least 4 bytes of capacity.
func encodeSize(b []byte, size uint32) int {
	if size < 128 {
		b[0] = byte(size)
		return 1
	}
	binary.BigEndian.PutUint32(b, size|(1<<31))
	return 4
}

// decodeSize reads a FastCGI short or long length from the front of b,
// returning the decoded value and the number of bytes consumed. It returns
// (0, 0) if b does not contain enough bytes for the encoded form.
func decodeSize(b []byte) (uint32, int) {
	if len(b) == 0 {
		return 0, 0
	}
	if b[0]&0x80 == 0 {
		return uint32(b[0]), 1
	}
	if len(b) < 4 {
		return 0, 0
	}
	size := binary.BigEndian.Uint32(b)
	return size &^ (1 << 31), 4
}

// EncodeParams serializes p into the FastCGI name-value pair wire format
// used as the content of the PARAMS stream. Keys are visited in lexical
// order for determinism.
func EncodeParams(p *Params) []byte {
	var out []byte
	var lenBuf [4]byte

	for _, k := range p.sortedKeys() {
		v := p.values[k]
		n := encodeSize(lenBuf[:], uint32(len(k)))
		out = append(out, lenBuf[:n]...)
		n = encodeSize(lenBuf[:], uint32(len(v)))
		out = append(out, lenBuf[:n]...)
		out = append(out, k...)
		out = append(out, v...)
	}
	return out
}

// DecodeParams parses the FastCGI name-value pair wire format back into a
// Params. It is the inverse of EncodeParams and is also what a caller
// handling GET_VALUES_RESULT would reuse. It returns ErrMalformedParams if
// buf ends mid-pair.
func DecodeParams(buf []byte) (*Params, error) {
	p := NewParams()
	for len(buf) > 0 {
		nameLen, n := decodeSize(buf)
		if n == 0 {
			return nil, ErrMalformedParams
		}
		buf = buf[n:]

		valueLen, n := decodeSize(buf)
		if n == 0 {
			return nil, ErrMalformedParams
		}
		buf = buf[n:]

		if uint64(nameLen)+uint64(valueLen) > uint64(len(buf)) {
			return nil, ErrMalformedParams
		}
		name := string(buf[:nameLen])
		buf = buf[nameLen:]
		value := string(buf[:valueLen])
		buf = buf[valueLen:]

		p.Set(name, value)
	}
	return p, nil
}
