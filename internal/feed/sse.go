package feed

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
)

// Event is one server-sent event.
type Event struct {
	ID    []byte
	Event []byte
	Data  []byte
	Retry []byte
}

// MarshalTo writes the event in text/event-stream framing. Multi-line data
// becomes one data field per line.
func (e *Event) MarshalTo(w io.Writer) error {
	if len(e.Data) == 0 && len(e.Event) == 0 && len(e.ID) == 0 {
		return nil
	}
	if len(e.ID) > 0 {
		if _, err := fmt.Fprintf(w, "id: %s\n", e.ID); err != nil {
			return err
		}
	}
	if len(e.Event) > 0 {
		if _, err := fmt.Fprintf(w, "event: %s\n", e.Event); err != nil {
			return err
		}
	}
	if len(e.Retry) > 0 {
		if _, err := fmt.Fprintf(w, "retry: %s\n", e.Retry); err != nil {
			return err
		}
	}
	for _, line := range bytes.Split(e.Data, []byte("\n")) {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// ServeSSE streams every payload published on b until the client goes away.
func ServeSSE(b *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		sub := b.Subscribe()
		defer b.Unsubscribe(sub)
		log.Printf("SSE client connected, ip:%v", r.RemoteAddr)

		for {
			select {
			case <-r.Context().Done():
				log.Printf("SSE client disconnected, ip:%v", r.RemoteAddr)
				return
			case payload, ok := <-sub.C:
				if !ok {
					return
				}
				ev := Event{Data: payload}
				if err := ev.MarshalTo(w); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
