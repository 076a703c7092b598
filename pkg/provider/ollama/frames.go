package ollama

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/denker-ai/denker/pkg/api"
)

// frameReader decodes newline-delimited JSON frames from a backend
// response body. bufio handles byte-level reassembly, so a multi-byte
// character or a frame split across network reads is reconstructed before
// decoding. A final line without a trailing newline is still returned as a
// frame.
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReader(r)}
}

// Next returns the next frame, io.EOF at end of stream, or an error. A
// frame that is not valid JSON fails the stream: silently resyncing on the
// next line could drop a tool call or a done marker.
func (f *frameReader) Next() (*chatFrame, error) {
	for {
		line, err := f.r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, api.NewTransportError(fmt.Sprintf("reading response stream: %v", err))
		}
		atEOF := errors.Is(err, io.EOF)

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if atEOF {
				return nil, io.EOF
			}
			continue
		}

		var frame chatFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			return nil, api.NewBackendError(fmt.Sprintf("malformed frame from backend: %v", err))
		}
		return &frame, nil
	}
}
