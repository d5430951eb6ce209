package stream

import (
	"encoding/json"
	"io"
	"net/http"
)

// Encoder serializes events as newline-delimited JSON, flushing after every
// record so a slow consumer observes progress incrementally instead of one
// final burst.
type Encoder struct {
	enc     *json.Encoder
	flusher http.Flusher
}

// NewEncoder wraps the writer. When w also implements http.Flusher each
// record is flushed to the transport as it is written.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{enc: json.NewEncoder(w)}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

// Emit writes one event and flushes. A write error means the downstream
// consumer is gone; callers must stop producing when it is returned.
func (e *Encoder) Emit(ev Event) error {
	if err := e.enc.Encode(ev); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// PrepareResponse marks the response as a newline-delimited JSON stream.
// The status is always 200: embedded error events must not tear down
// client-side stream readers with a non-2xx status.
func PrepareResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}
