package hub

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"fleetscope/internal/service"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// sseFrame is one parsed event frame
type sseFrame struct {
	id, event, data string
}

// readFrame returns the next event frame of the stream, skipping comments
func readFrame(r *bufio.Reader) (sseFrame, error) {
	var f sseFrame
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return f, err
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if f.data != "" {
				return f, nil
			}
		case strings.HasPrefix(line, "id: "):
			f.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			f.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	h := New(logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv
}

func TestHubStreamsForwardedEvents(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := New(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	bus := service.NewEventBus()
	go h.Forward(ctx, bus)

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	// Forward subscribes asynchronously; publish until the event arrives
	reader := bufio.NewReader(resp.Body)
	got := make(chan sseFrame, 1)
	go func() {
		f, _ := readFrame(reader)
		got <- f
	}()

	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case f := <-got:
			if f.event != string(service.EventDiscoveryStarted) {
				t.Errorf("event = %q", f.event)
			}
			if f.id == "" {
				t.Error("frame without id")
			}
			if !strings.Contains(f.data, `"type":"discovery_started"`) || !strings.Contains(f.data, `"org_id":"42"`) {
				t.Errorf("unexpected event %s", f.data)
			}
			return
		case <-tick.C:
			bus.Publish(service.Event{Type: service.EventDiscoveryStarted, Payload: service.RunEvent{OrgID: "42"}})
		case <-deadline:
			t.Fatal("event not received")
		}
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := New(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	reqCtx, reqCancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	reqCancel()
	resp.Body.Close()
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestHubShutdown(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := New(logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after shutdown, got %d", rec.Code)
	}
}

func TestHubFiltersByOrganization(t *testing.T) {
	h, srv := startHub(t)

	resp, err := http.Get(srv.URL + "?org=7")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.Broadcast(service.Event{Type: service.EventBatchComplete, Payload: service.BatchEvent{OrgID: "8", Batch: "neighbors"}})
	h.Broadcast(service.Event{Type: service.EventDiscoveryComplete, Payload: service.RunEvent{OrgID: "7", Devices: 3}})

	got := make(chan sseFrame, 1)
	go func() {
		f, _ := readFrame(bufio.NewReader(resp.Body))
		got <- f
	}()

	select {
	case f := <-got:
		if f.event != string(service.EventDiscoveryComplete) || !strings.Contains(f.data, `"org_id":"7"`) {
			t.Errorf("expected only org 7 events, got %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}
