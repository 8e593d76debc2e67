// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"
)

// maxLineSize bounds a single NDJSON line.
const maxLineSize = 4 << 20

// StreamReader parses a streamed /api/chat body line by line.
type StreamReader struct {
	scanner     *bufio.Scanner
	accumulator strings.Builder
	model       string
}

// NewStreamReader creates a stream reader over r.
func NewStreamReader(r io.Reader) *StreamReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return &StreamReader{scanner: sc}
}

// Process reads the stream and calls callback for each chunk. It returns nil
// after the done chunk and an error if the body ends before it or ctx is
// cancelled.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := s.parse(s.scanner.Bytes())
		if err != nil {
			return err
		}
		if chunk == nil {
			continue
		}
		callback(*chunk)
		if chunk.Done {
			return nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "stream read failed", Cause: err}
	}
	return &ClientError{Type: ErrTypeInvalidResponse, Message: "incomplete response", Cause: errStreamEnded}
}

// parse decodes one line. Blank and malformed lines yield nil.
func (s *StreamReader) parse(line []byte) (*StreamChunk, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var resp chatLine
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, nil
	}
	if resp.Error != "" {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: resp.Error}
	}
	if resp.Model != "" {
		s.model = resp.Model
	}
	s.accumulator.WriteString(resp.Message.Content)

	chunk := &StreamChunk{
		Content:   resp.Message.Content,
		Thinking:  resp.Message.Thinking,
		ToolCalls: resp.Message.ToolCalls,
		Done:      resp.Done,
		Model:     s.model,
	}
	if resp.Done {
		chunk.DoneReason = resp.DoneReason
		chunk.TotalDuration = time.Duration(resp.TotalDuration)
		chunk.EvalDuration = time.Duration(resp.EvalDuration)
		chunk.PromptTokens = resp.PromptEvalCount
		chunk.CompletionTokens = resp.EvalCount
	}
	return chunk, nil
}

// Accumulated returns all content read so far.
func (s *StreamReader) Accumulated() string {
	return s.accumulator.String()
}

// errStreamEnded is returned by ChatStream when the body ends without a done
// chunk.
var errStreamEnded = errors.New("stream ended before completion")
