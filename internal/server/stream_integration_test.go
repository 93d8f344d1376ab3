package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/event"
)

// streamClient reads SSE frames from a live /api/stream response.
type streamClient struct {
	resp   *http.Response
	events chan event.Event
}

func openStream(t *testing.T, baseURL string) *streamClient {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	t.Cleanup(func() { resp.Body.Close() })

	sc := &streamClient{resp: resp, events: make(chan event.Event, 16)}
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev event.Event
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev) == nil {
				sc.events <- ev
			}
		}
		close(sc.events)
	}()
	return sc
}

func (sc *streamClient) next(t *testing.T) event.Event {
	t.Helper()
	select {
	case ev, ok := <-sc.events:
		require.True(t, ok, "stream closed before event arrived")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream event")
		return event.Event{}
	}
}

func TestStream_PublishReachesSSEObserver(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	client := openStream(t, ts.URL)

	resp, err := http.Post(ts.URL+"/api/events", "application/json",
		strings.NewReader(`{"resource":"materials","action":"create","id":"m7","data":{"name":"unit 7"}}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	ev := client.next(t)
	assert.Equal(t, "materials", ev.Resource)
	assert.Equal(t, event.ActionCreate, ev.Action)
	assert.Equal(t, "m7", ev.ID)
}

func TestStream_RedemptionEmitsJoinEvent(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	window := createWindow(t, srv)
	client := openStream(t, ts.URL)

	resp, err := http.Post(ts.URL+"/api/attendance/otp/verify", "application/json",
		strings.NewReader(`{"code":"`+window.Code+`","studentId":"2311"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ev := client.next(t)
	require.Equal(t, event.ResourceAttendance, ev.Resource)
	join, ok := event.ParseJoin(ev)
	require.True(t, ok)
	assert.Equal(t, "2311", join.StudentID)
	assert.Equal(t, "Present", join.Status)
	assert.Equal(t, "DS", join.Subject)
}

func TestStream_WebSocketObserver(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.echo)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	httpResp, err := http.Post(ts.URL+"/api/events", "application/json",
		strings.NewReader(`{"resource":"messages","action":"delete","id":"msg9"}`))
	require.NoError(t, err)
	httpResp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev event.Event
	require.NoError(t, json.Unmarshal(frame, &ev))
	assert.Equal(t, "messages", ev.Resource)
	assert.Equal(t, event.ActionDelete, ev.Action)
	assert.Equal(t, "msg9", ev.ID)
}

func TestStream_EventsBeforeSubscribeAreNotReplayed(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/api/events", "application/json",
		strings.NewReader(`{"resource":"materials","action":"create","id":"early"}`))
	require.NoError(t, err)
	resp.Body.Close()

	client := openStream(t, ts.URL)

	resp, err = http.Post(ts.URL+"/api/events", "application/json",
		strings.NewReader(`{"resource":"materials","action":"create","id":"late"}`))
	require.NoError(t, err)
	resp.Body.Close()

	ev := client.next(t)
	assert.Equal(t, "late", ev.ID)
}
