package fcgx

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeStreamEmptyTerminator(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeStream(&buf, Params, 1, bytes.NewReader(nil), maxContent))

	want := []byte{0x01, 0x04, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	assert.Equal(t, want, buf.Bytes())
}

func TestEncodeStreamExactly65535Bytes(t *testing.T) {
	body := bytes.Repeat([]byte{'x'}, 65535)
	var buf bytes.Buffer
	require.NoError(t, EncodeStream(&buf, Stdin, 1, bytes.NewReader(body), maxContent))

	records := decodeAllRecords(t, &buf)
	require.Len(t, records, 2)
	assert.Equal(t, 65535, len(records[0].content))
	assert.Equal(t, 0, len(records[1].content))
}

func TestEncodeStreamExactly65536Bytes(t *testing.T) {
	body := bytes.Repeat([]byte{'y'}, 65536)
	var buf bytes.Buffer
	require.NoError(t, EncodeStream(&buf, Stdin, 1, bytes.NewReader(body), maxContent))

	records := decodeAllRecords(t, &buf)
	require.Len(t, records, 3)
	assert.Equal(t, 65535, len(records[0].content))
	assert.Equal(t, 1, len(records[1].content))
	assert.Equal(t, 0, len(records[2].content))
}

func TestEncodeStreamConcatenationMatchesSource(t *testing.T) {
	for _, n := range []int{0, 1, 127, 128, 65535, 65536, 200000} {
		body := bytes.Repeat([]byte{'z'}, n)
		var buf bytes.Buffer
		require.NoError(t, EncodeStream(&buf, Stdin, 1, bytes.NewReader(body), maxContent))

		records := decodeAllRecords(t, &buf)
		require.NotEmpty(t, records)
		last := records[len(records)-1]
		assert.Empty(t, last.content, "terminator must be empty")

		var got []byte
		for _, r := range records[:len(records)-1] {
			got = append(got, r.content...)
		}
		assert.Equal(t, body, got)
	}
}

func TestEncodeRecordRejectsOversizeContent(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeRecord(&buf, Stdin, 1, make([]byte, maxContent+1))
	assert.ErrorIs(t, err, ErrContentTooLarge)
}

func TestEveryNonTerminatorRecordHasContentBetween1And65535(t *testing.T) {
	body := bytes.Repeat([]byte{'q'}, 200003)
	var buf bytes.Buffer
	require.NoError(t, EncodeStream(&buf, Stdin, 7, bytes.NewReader(body), maxContent))

	records := decodeAllRecords(t, &buf)
	for _, r := range records[:len(records)-1] {
		assert.GreaterOrEqual(t, len(r.content), 1)
		assert.LessOrEqual(t, len(r.content), maxContent)
	}
}

type decodedRecord struct {
	header  Header
	content []byte
}

func decodeAllRecords(t *testing.T, r io.Reader) []decodedRecord {
	t.Helper()
	var out []decodedRecord
	for {
		h, err := DecodeHeader(r)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := DecodeContent(r, h)
		require.NoError(t, err)
		out = append(out, decodedRecord{header: h, content: content})
		if h.ContentLength == 0 {
			break
		}
	}
	return out
}
