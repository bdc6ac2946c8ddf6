package fcgx

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrContentTooLarge is returned by EncodeRecord when asked to frame content
// longer than a single record can carry. Callers must chunk; the framer
// never fragments on their behalf.
var ErrContentTooLarge = errors.New("fcgx: content exceeds a single record (65535 bytes)")

var zeroPad [maxPadding]byte

// EncodeRecord writes one FastCGI record: an 8-byte header, the content
// verbatim, then enough zero bytes to pad the record to a multiple of 8.
//
// content must be no longer than 65535 bytes; EncodeRecord returns
// ErrContentTooLarge otherwise rather than silently truncating or
// fragmenting it. Use EncodeStream to frame an arbitrary-length source.
func EncodeRecord(w io.Writer, typ RecordType, requestID uint16, content []byte) error {
	if len(content) > maxContent {
		return ErrContentTooLarge
	}

	h := newHeader(typ, requestID, len(content))
	if err := binary.Write(w, binary.BigEndian, h); err != nil {
		return errors.Wrap(err, "fcgx: writing record header")
	}
	if len(content) > 0 {
		if _, err := w.Write(content); err != nil {
			return errors.Wrap(err, "fcgx: writing record content")
		}
	}
	if h.PaddingLength > 0 {
		if _, err := w.Write(zeroPad[:h.PaddingLength]); err != nil {
			return errors.Wrap(err, "fcgx: writing record padding")
		}
	}
	return nil
}

// EncodeStream reads from src in chunks of up to chunkSize bytes (clamped to
// 65535) and emits one record of type typ per chunk, in order. After src is
// exhausted it emits exactly one empty terminator record of the same type,
// even if src never produced any bytes at all. This is the canonical way to
// write the PARAMS and STDIN streams.
func EncodeStream(w io.Writer, typ RecordType, requestID uint16, src io.Reader, chunkSize int) error {
	if chunkSize <= 0 || chunkSize > maxContent {
		chunkSize = maxContent
	}
	buf := make([]byte, chunkSize)

	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			if werr := EncodeRecord(w, typ, requestID, buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "fcgx: reading stream source")
		}
	}
	return EncodeRecord(w, typ, requestID, nil)
}

// DecodeHeader reads exactly 8 bytes from r and parses them into a Header.
// Record type bytes the protocol doesn't define are normalized to
// UnknownType.
func DecodeHeader(r io.Reader) (Header, error) {
	var raw [headerLen]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, errors.Wrap(err, "fcgx: reading record header")
	}
	return Header{
		Version:       raw[0],
		Type:          normalizeRecordType(raw[1]),
		RequestID:     binary.BigEndian.Uint16(raw[2:4]),
		ContentLength: binary.BigEndian.Uint16(raw[4:6]),
		PaddingLength: raw[6],
		Reserved:      raw[7],
	}, nil
}

// DecodeContent reads exactly h.ContentLength bytes of content followed by
// h.PaddingLength bytes of padding, which are discarded unvalidated.
func DecodeContent(r io.Reader, h Header) ([]byte, error) {
	content := make([]byte, h.ContentLength)
	if len(content) > 0 {
		if _, err := io.ReadFull(r, content); err != nil {
			return nil, errors.Wrap(err, "fcgx: reading record content")
		}
	}
	if h.PaddingLength > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(h.PaddingLength)); err != nil {
			return nil, errors.Wrap(err, "fcgx: reading record padding")
		}
	}
	return content, nil
}
