package vtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Event is one server-sent event.
type Event struct {
	Name string
	Data []string
}

// Field joins the data lines that start with key, the way Datastar splits
// multi-line payloads.
func (e Event) Field(key string) string {
	var parts []string
	for _, d := range e.Data {
		if v, ok := strings.CutPrefix(d, key+" "); ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n")
}

// syncedResponseWriter wraps httptest.ResponseRecorder with synchronized access
type syncedResponseWriter struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (w *syncedResponseWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ResponseRecorder.Write(b)
}

func (w *syncedResponseWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ResponseRecorder.Flush()
}

func (w *syncedResponseWriter) safeBodyString() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ResponseRecorder.Body.String()
}

// SSE is an open event stream of one tab.
type SSE struct {
	recorder  *syncedResponseWriter
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}

	mu       sync.Mutex
	consumed int
}

func openSSE(handler http.Handler, sessionID string) *SSE {
	q, _ := json.Marshal(map[string]string{contextSignal: sessionID})
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/_sse?datastar="+url.QueryEscape(string(q)), nil).WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")

	s := &SSE{
		recorder:  &syncedResponseWriter{ResponseRecorder: httptest.NewRecorder()},
		sessionID: sessionID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		handler.ServeHTTP(s.recorder, req)
	}()
	return s
}

// Events returns every complete event received so far.
func (s *SSE) Events() []Event {
	return parseEvents(s.recorder.safeBodyString())
}

// WaitForEvents waits until at least count events arrived or timeout elapses,
// and returns what was received.
func (s *SSE) WaitForEvents(count int, timeout time.Duration) []Event {
	deadline := time.Now().Add(timeout)
	for {
		evs := s.Events()
		if len(evs) >= count || time.Now().After(deadline) {
			return evs
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// next returns the events received since the previous call.
func (s *SSE) next() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := s.Events()
	if s.consumed >= len(evs) {
		return nil
	}
	fresh := evs[s.consumed:]
	s.consumed = len(evs)
	return fresh
}

// settle returns once the stream has not grown for quiet, or after max.
func (s *SSE) settle(quiet, max time.Duration) {
	deadline := time.Now().Add(max)
	last := len(s.recorder.safeBodyString())
	stable := time.Now()
	for time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
		n := len(s.recorder.safeBodyString())
		if n != last {
			last, stable = n, time.Now()
			continue
		}
		if time.Since(stable) >= quiet {
			return
		}
	}
}

// Close ends the stream and waits for the handler to return.
func (s *SSE) Close() {
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(time.Second):
	}
}

func parseEvents(body string) []Event {
	var events []Event
	blocks := strings.Split(body, "\n\n")
	// the last block is either empty or still being written
	for _, block := range blocks[:len(blocks)-1] {
		var ev Event
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.Data = append(ev.Data, strings.TrimPrefix(line, "data: "))
			}
		}
		if ev.Name != "" {
			events = append(events, ev)
		}
	}
	return events
}
