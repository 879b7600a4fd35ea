package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/flemzord/parrot/internal/provider"
)

// maxEventSize bounds a single SSE line.
const maxEventSize = 1 << 20

// errDone ends a stream on the "[DONE]" sentinel.
var errDone = errors.New("openai: stream done")

// streamReader turns an SSE body into provider chunks.
type streamReader struct {
	ctx  context.Context
	body io.ReadCloser
	out  chan<- provider.StreamChunk
}

// readStream forwards the completion in body to out until [DONE], EOF, a
// failure or ctx cancellation. It closes both body and out.
func readStream(ctx context.Context, body io.ReadCloser, out chan<- provider.StreamChunk) {
	sr := &streamReader{ctx: ctx, body: body, out: out}
	defer close(out)
	defer func() { _ = body.Close() }()

	// A blocked Read only returns once the body is closed.
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	if err := sr.run(); err != nil && !errors.Is(err, errDone) {
		sr.emit(provider.StreamChunk{Err: err})
	}
}

func (sr *streamReader) run() error {
	lines := bufio.NewScanner(sr.body)
	lines.Buffer(make([]byte, 0, 64<<10), maxEventSize)

	for lines.Scan() {
		if err := sr.ctx.Err(); err != nil {
			return err
		}
		data, ok := strings.CutPrefix(lines.Text(), "data:")
		if !ok {
			// Comments, event names and ids carry nothing for us.
			continue
		}
		chunk, err := decodeEvent(strings.TrimSpace(data))
		if err != nil {
			return err
		}
		if chunk == nil {
			continue
		}
		if !sr.emit(*chunk) {
			return nil
		}
	}

	if err := sr.ctx.Err(); err != nil {
		return err
	}
	if err := lines.Err(); err != nil {
		return transportError(err)
	}
	return nil
}

// decodeEvent parses one data payload. It returns a nil chunk for events
// without text or finish reason.
func decodeEvent(data string) (*provider.StreamChunk, error) {
	switch data {
	case "":
		return nil, nil
	case "[DONE]":
		return nil, errDone
	}

	var ev chatChunk
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nil, fmt.Errorf("openai: decode stream chunk: %w", err)
	}
	if ev.Error != nil {
		return nil, fmt.Errorf("%w: %s", provider.ErrProviderDown, ev.Error.Message)
	}
	if len(ev.Choices) == 0 {
		return nil, nil
	}

	choice := ev.Choices[0]
	chunk := provider.StreamChunk{FinishReason: mapFinishReason(choice.FinishReason)}
	if choice.Delta.Content != "" {
		chunk.Data = []byte(choice.Delta.Content)
	}
	if chunk.Data == nil && chunk.FinishReason == "" {
		return nil, nil
	}
	return &chunk, nil
}

// emit delivers c unless the consumer went away.
func (sr *streamReader) emit(c provider.StreamChunk) bool {
	select {
	case sr.out <- c:
		return true
	case <-sr.ctx.Done():
		return false
	}
}
