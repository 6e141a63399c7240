package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geopick/geopick/internal/claim"
	"github.com/geopick/geopick/internal/relay"
)

func TestHandleEventsStreamsHubMessages(t *testing.T) {
	hub := relay.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handleEvents(hub)(rec, req)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(ctx, claim.Event{Type: claim.EventPOIClaimed, POIID: "alex", TeamID: "red"})
	hub.Broadcast([]byte(`not json`))

	// Let the handler drain the buffered messages before stopping it.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content-type = %q", got)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: PoiClaimed\ndata: {\"type\":\"PoiClaimed\",\"poiId\":\"alex\",\"teamId\":\"red\"}\n\n") {
		t.Errorf("body missing PoiClaimed event: %q", body)
	}
	if !strings.Contains(body, "event: message\ndata: not json\n\n") {
		t.Errorf("body missing fallback event name: %q", body)
	}
	if hub.Len() != 0 {
		t.Errorf("subscriber not removed")
	}
}
