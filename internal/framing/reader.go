package framing

import (
	"bufio"
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"iter"
	"log/slog"

	"github.com/wagiedev/claudewire/internal/errors"
)

const (
	// DefaultMaxBufferSize bounds the bytes held for one undecoded frame.
	DefaultMaxBufferSize = 1024 * 1024 // 1MB

	// snippetSize is how much of an overflowing buffer is kept for diagnostics.
	snippetSize = 200

	readBufferSize = 64 * 1024
)

// Reader decodes newline-delimited JSON objects from a byte stream.
//
// A line that does not parse on its own is buffered and joined with the
// following lines until the accumulated text parses. The accumulated text is
// bounded by the maximum buffer size.
type Reader struct {
	log     *slog.Logger
	src     *bufio.Reader
	max     int
	pending []byte
	err     error
}

// NewReader creates a Reader over r. A non-positive maxBufferSize selects
// DefaultMaxBufferSize.
func NewReader(log *slog.Logger, r io.Reader, maxBufferSize int) *Reader {
	if maxBufferSize <= 0 {
		maxBufferSize = DefaultMaxBufferSize
	}

	return &Reader{
		log: log.With("component", "framing"),
		src: bufio.NewReaderSize(r, min(readBufferSize, maxBufferSize)),
		max: maxBufferSize,
	}
}

// Next returns the next decoded object.
//
// It returns io.EOF once the stream ends. A *errors.BufferOverflowError is
// returned when a frame grows past the limit. Any other error comes from the
// underlying reader. After an error every later call returns the same error.
func (r *Reader) Next() (map[string]any, error) {
	if r.err != nil {
		return nil, r.err
	}

	for {
		line, err := r.readLine()
		if err != nil {
			if err == io.EOF && len(r.pending) > 0 {
				r.log.Warn("Stream ended with an incomplete JSON frame",
					"bytes", len(r.pending),
				)
			}

			r.err = err

			return nil, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		obj, ok, err := r.decode(line)
		if err != nil {
			r.err = err

			return nil, err
		}

		if ok {
			return obj, nil
		}
	}
}

// All yields decoded objects until the stream ends. A terminal error, other
// than the end of the stream, is yielded once as the last element.
func (r *Reader) All() iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		for {
			obj, err := r.Next()
			if err == io.EOF {
				return
			}

			if !yield(obj, err) || err != nil {
				return
			}
		}
	}
}

// decode feeds one non-empty line into the frame buffer. ok is true when a
// complete object was produced.
func (r *Reader) decode(line []byte) (map[string]any, bool, error) {
	if len(r.pending) == 0 {
		if json.Valid(line) {
			return r.unmarshal(line)
		}

		r.pending = append(r.pending, line...)

		return r.checkOverflow()
	}

	r.pending = append(r.pending, line...)
	if json.Valid(r.pending) {
		frame := r.pending
		r.pending = nil

		return r.unmarshal(frame)
	}

	if json.Valid(line) {
		r.log.Warn("Discarding incomplete JSON frame",
			"bytes", len(r.pending)-len(line),
		)

		r.pending = nil

		return r.unmarshal(line)
	}

	return r.checkOverflow()
}

func (r *Reader) checkOverflow() (map[string]any, bool, error) {
	if len(r.pending) <= r.max {
		return nil, false, nil
	}

	err := &errors.BufferOverflowError{
		Limit:   r.max,
		Snippet: string(r.pending[:min(len(r.pending), snippetSize)]),
	}
	r.pending = nil

	return nil, false, err
}

// unmarshal decodes a syntactically valid frame. Frames that are not objects
// are logged and skipped.
func (r *Reader) unmarshal(frame []byte) (map[string]any, bool, error) {
	var obj map[string]any
	if err := json.Unmarshal(frame, &obj); err != nil || obj == nil {
		decodeErr := &errors.CLIJSONDecodeError{
			RawData: string(frame[:min(len(frame), snippetSize)]),
			Err:     err,
		}
		if decodeErr.Err == nil {
			decodeErr.Err = stderrors.New("frame is not a JSON object")
		}

		r.log.Warn("Skipping undecodable frame", "error", decodeErr)

		return nil, false, nil
	}

	return obj, true, nil
}

// readLine reads one newline-terminated line, refusing to grow past the limit.
// The final unterminated line of the stream is returned before io.EOF.
func (r *Reader) readLine() ([]byte, error) {
	var line []byte

	for {
		chunk, err := r.src.ReadSlice('\n')
		if len(line)+len(chunk)+len(r.pending) > r.max {
			snippet := append(append([]byte{}, r.pending...), line...)
			snippet = append(snippet, chunk...)
			r.pending = nil

			return nil, &errors.BufferOverflowError{
				Limit:   r.max,
				Snippet: string(snippet[:min(len(snippet), snippetSize)]),
			}
		}

		switch {
		case err == nil:
			if line == nil {
				return chunk, nil
			}

			return append(line, chunk...), nil

		case stderrors.Is(err, bufio.ErrBufferFull):
			line = append(line, chunk...)

		case err == io.EOF:
			line = append(line, chunk...)
			if len(line) > 0 {
				return line, nil
			}

			return nil, io.EOF

		default:
			return nil, err
		}
	}
}
