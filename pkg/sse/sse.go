// Package sse implements the Server-Sent Events wire format used between
// the server and its clients: repeated blocks of
//
//	event: <type>\n
//	data: <json>\n
//	\n
//
// The writer half frames events; the parser half reassembles them from a
// byte stream delivered in arbitrary splits.
package sse

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Event is one framed server-sent event.
type Event struct {
	Name string
	Data []byte
}

// WriteEvent frames a single event onto w.
func WriteEvent(w io.Writer, name string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return nil
}

// Parser incrementally reassembles events from a transport that may split
// the byte stream at any offset, including mid-block. Feed bytes as they
// arrive; complete blank-line-terminated blocks come back as events, and
// partial trailing bytes are buffered until the block completes.
type Parser struct {
	buf bytes.Buffer
}

// Feed appends chunk to the internal buffer and returns every event whose
// terminating blank line has arrived. Malformed blocks are skipped.
func (p *Parser) Feed(chunk []byte) []Event {
	p.buf.Write(chunk)

	var events []Event
	for {
		raw := p.buf.Bytes()
		idx := bytes.Index(raw, []byte("\n\n"))
		if idx < 0 {
			return events
		}
		block := string(raw[:idx])
		p.buf.Next(idx + 2)

		if ev, ok := parseBlock(block); ok {
			events = append(events, ev)
		}
	}
}

// parseBlock extracts the event name and data payload from one block.
// Multiple data lines concatenate with newlines, per the SSE format.
func parseBlock(block string) (Event, bool) {
	var ev Event
	var data []string
	for _, line := range strings.Split(block, "\n") {
		switch {
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if ev.Name == "" && len(data) == 0 {
		return Event{}, false
	}
	ev.Data = []byte(strings.Join(data, "\n"))
	return ev, true
}
