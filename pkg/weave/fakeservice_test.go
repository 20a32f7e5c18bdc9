package weave

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weavelabs/weave-go/pkg/wire"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeService is an in-process stand-in for the orchestration service. It
// accepts WebSocket connections, answers the initial HANDSHAKE, and exposes
// every frame the client sends afterwards on the frames channel so tests can
// script the server side of a conversation.
type fakeService struct {
	t   *testing.T
	srv *httptest.Server

	// answerHandshake produces the response for an inbound HANDSHAKE.
	// Defaults to accepting everything.
	answerHandshake func(hs wire.Handshake) wire.HandshakeResponse

	handshakes chan wire.Handshake
	frames     chan wire.RawFrame

	mu                  sync.Mutex
	writeMu             sync.Mutex
	conns               []*websocket.Conn
	dialed              int
	closeAfterHandshake bool
}

func newFakeService(t *testing.T) *fakeService {
	f := &fakeService{
		t:          t,
		handshakes: make(chan wire.Handshake, 4),
		frames:     make(chan wire.RawFrame, 64),
		answerHandshake: func(hs wire.Handshake) wire.HandshakeResponse {
			return wire.HandshakeResponse{
				Type:         wire.TypeHandshakeResponse,
				Success:      true,
				ClientID:     "client-1",
				RedisChannel: "chan-1",
			}
		},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handleWS))
	t.Cleanup(f.srv.Close)
	return f
}

// URL returns the ws:// endpoint clients should dial.
func (f *fakeService) URL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeService) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.dialed++
	f.conns = append(f.conns, c)
	f.mu.Unlock()

	var hs wire.Handshake
	if err := c.ReadJSON(&hs); err != nil {
		_ = c.Close()
		return
	}
	f.handshakes <- hs

	resp := f.answerHandshake(hs)
	f.writeMu.Lock()
	err = c.WriteJSON(resp)
	f.writeMu.Unlock()
	if err != nil || !resp.Success {
		_ = c.Close()
		return
	}
	f.mu.Lock()
	dropNow := f.closeAfterHandshake
	f.mu.Unlock()
	if dropNow {
		_ = c.Close()
		return
	}

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		rf, err := wire.DecodeRaw(data)
		if err != nil {
			f.t.Errorf("fake service: undecodable frame: %v", err)
			continue
		}
		f.frames <- rf
	}
}

// send writes one frame to the most recent connection.
func (f *fakeService) send(v any) {
	f.mu.Lock()
	var c *websocket.Conn
	if len(f.conns) > 0 {
		c = f.conns[len(f.conns)-1]
	}
	f.mu.Unlock()
	if c == nil {
		f.t.Error("fake service: send with no connection")
		return
	}
	f.writeMu.Lock()
	err := c.WriteJSON(v)
	f.writeMu.Unlock()
	if err != nil {
		f.t.Errorf("fake service: write: %v", err)
	}
}

// setCloseAfterHandshake makes the service drop each connection right after
// accepting its handshake, simulating a transport that dies mid-connect.
func (f *fakeService) setCloseAfterHandshake(v bool) {
	f.mu.Lock()
	f.closeAfterHandshake = v
	f.mu.Unlock()
}

// closeConns drops every accepted connection, simulating a network failure.
func (f *fakeService) closeConns() {
	f.mu.Lock()
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

func (f *fakeService) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dialed
}

// expect waits for the next frame from the client and asserts its type.
// Only call from the test goroutine.
func (f *fakeService) expect(t *testing.T, want wire.FrameType) wire.RawFrame {
	t.Helper()
	select {
	case rf := <-f.frames:
		if rf.Type != want {
			t.Fatalf("frame type = %q, want %q", rf.Type, want)
		}
		return rf
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s frame", want)
		return wire.RawFrame{}
	}
}

// expectNoFrame asserts the client stays quiet for the given window.
func (f *fakeService) expectNoFrame(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case rf := <-f.frames:
		t.Fatalf("unexpected %s frame", rf.Type)
	case <-time.After(window):
	}
}
