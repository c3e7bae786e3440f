package testutil

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Frame is one decoded data-only SSE frame.
type Frame struct {
	// Type is the "type" field of the JSON payload.
	Type string
	// Payload is the full decoded JSON object.
	Payload map[string]any
	// Raw is the undecoded data line.
	Raw string
}

// ParseSSE decodes a data-only event stream into frames. Every data line is
// expected to carry a JSON object with a "type" field.
func ParseSSE(r io.Reader) ([]Frame, error) {
	var frames []Frame
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			return nil, fmt.Errorf("unexpected stream line %q", line)
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return nil, fmt.Errorf("decoding frame %q: %w", data, err)
		}
		typ, _ := payload["type"].(string)
		frames = append(frames, Frame{Type: typ, Payload: payload, Raw: data})
	}
	return frames, scanner.Err()
}

// Types flattens frames to their type tags.
func Types(frames []Frame) []string {
	types := make([]string, len(frames))
	for i, f := range frames {
		types[i] = f.Type
	}
	return types
}
