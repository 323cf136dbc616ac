package http1

import (
	"bytes"
	"fmt"
)

// WriteRequestLine writes only "METHOD target HTTP/1.1\r\n". Headers and
// the blank line are written by WriteHeaders, and body bytes (chunked or
// fixed) are appended separately by the caller (§4.6 Submit).
func WriteRequestLine(buf *bytes.Buffer, method, target string) {
	fmt.Fprintf(buf, "%s %s HTTP/1.1\r\n", method, target)
}

// WriteStatusLine writes "HTTP/1.1 CODE Reason\r\n".
func WriteStatusLine(buf *bytes.Buffer, code int, reason string) {
	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\n", code, reason)
}

// WriteHeaders emits every header in original case, then the blank line
// terminating the header block.
func WriteHeaders(buf *bytes.Buffer, h *Headers) {
	if h != nil {
		h.EachOriginalCase(func(k, v string) {
			fmt.Fprintf(buf, "%s: %s\r\n", k, v)
		})
	}
	buf.WriteString("\r\n")
}

// WriteChunk writes one chunk (size line, data, CRLF). An empty chunk
// writes the terminal "0\r\n\r\n" (no trailers).
func WriteChunk(buf *bytes.Buffer, data []byte) {
	fmt.Fprintf(buf, "%x\r\n", len(data))
	buf.Write(data)
	buf.WriteString("\r\n")
}

// BuildRequest serializes a full request with either a fixed body (using
// Content-Length) or, when chunked is true, a single final chunk containing
// the whole body (callers needing incremental streaming should use
// WriteRequestLine/WriteHeaders/WriteChunk directly instead).
func BuildRequest(method, target string, h *Headers, body []byte, chunked bool) []byte {
	var buf bytes.Buffer
	WriteRequestLine(&buf, method, target)
	if chunked {
		h.Set("Transfer-Encoding", "chunked")
		h.Del("Content-Length")
	} else if body != nil {
		h.Set("Content-Length", fmt.Sprint(len(body)))
	}
	WriteHeaders(&buf, h)
	if chunked {
		if len(body) > 0 {
			WriteChunk(&buf, body)
		}
		WriteChunk(&buf, nil)
	} else {
		buf.Write(body)
	}
	return buf.Bytes()
}
