package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrEmptyBody is returned when a callback that requires a payload receives none.
var ErrEmptyBody = errors.New("request body is empty")

// Pool of buffers to avoid allocation and ensure thread safety
var bufferPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

// Marshal serializes a message to JSON without a trailing newline.
func Marshal(v interface{}) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	// Copy out so callers never alias the pooled buffer
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return bytes.TrimRight(out, "\n"), nil
}

// Decode reads one JSON document from r into v.
func Decode(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
