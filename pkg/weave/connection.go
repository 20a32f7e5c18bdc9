package weave

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/weavelabs/weave-go/internal/transport"
	"github.com/weavelabs/weave-go/pkg/wire"
)

// ConnState is the connection lifecycle phase.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateOpen
	StateAuthenticating
	StateReady
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var validTransitions = map[ConnState][]ConnState{
	StateDisconnected:   {StateConnecting},
	StateConnecting:     {StateOpen, StateFailed, StateDisconnected},
	StateOpen:           {StateAuthenticating, StateFailed, StateDisconnected},
	StateAuthenticating: {StateReady, StateFailed, StateDisconnected},
	StateReady:          {StateDisconnected},
	StateFailed:         {StateConnecting},
}

func canTransition(from, to ConnState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Identity is the actor identity a connection authenticates with. The zero
// value authenticates as an anonymous agent.
type Identity struct {
	ActorName string
	Metadata  map[string]any
}

const pingInterval = 30 * time.Second

// connectAttempt shares one in-flight connect's outcome among every caller
// that raced into Connect while it was running.
type connectAttempt struct {
	done      chan struct{}
	actorName string
	resp      wire.HandshakeResponse
	err       error
}

// ConnManager owns the session's single transport and drives the
// Disconnected → Connecting → Open → Authenticating → Ready state machine.
// It performs the handshake and turns transport closures into pending
// request rejections once the session has been Ready.
type ConnManager struct {
	baseURL    string
	apiKey     string
	worldID    string
	logger     *slog.Logger
	router     *Router
	correlator *Correlator

	mu         sync.Mutex
	state      ConnState
	conn       *transport.Conn
	clientID   string
	channel    string
	actorName  string
	attempt    *connectAttempt
	lastResp   wire.HandshakeResponse
	pingCancel context.CancelFunc
}

func NewConnManager(baseURL, apiKey, worldID string, router *Router, correlator *Correlator, logger *slog.Logger) *ConnManager {
	return &ConnManager{
		baseURL:    baseURL,
		apiKey:     apiKey,
		worldID:    worldID,
		router:     router,
		correlator: correlator,
		logger:     logger,
		state:      StateDisconnected,
	}
}

// State returns the current connection phase.
func (m *ConnManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ClientID returns the id assigned by the last successful handshake.
func (m *ConnManager) ClientID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientID
}

// Channel returns the channel token assigned by the last successful handshake.
func (m *ConnManager) Channel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channel
}

// Connect establishes and authenticates the session. It is idempotent for a
// given identity: when already Ready as that identity it returns the stored
// handshake, and a call made while another connect is in flight joins that
// attempt's outcome instead of opening a second transport. The service only
// learns who the client is at handshake, so connecting as a different actor
// tears down the current transport and handshakes afresh; anything pending
// on the old identity is rejected with ErrConnectionLost.
func (m *ConnManager) Connect(ctx context.Context, identity Identity) (wire.HandshakeResponse, error) {
	var a *connectAttempt
	for {
		m.mu.Lock()
		if m.state == StateReady {
			if m.actorName == identity.ActorName {
				resp := m.lastResp
				m.mu.Unlock()
				return resp, nil
			}
			m.mu.Unlock()
			m.logger.Info("identity changed, re-handshaking", "actor", identity.ActorName)
			m.Close()
			continue
		}
		if m.attempt != nil {
			joined := m.attempt
			m.mu.Unlock()
			select {
			case <-joined.done:
				if joined.actorName == identity.ActorName {
					return joined.resp, joined.err
				}
				continue
			case <-ctx.Done():
				return wire.HandshakeResponse{}, ctx.Err()
			}
		}
		a = &connectAttempt{done: make(chan struct{}), actorName: identity.ActorName}
		m.attempt = a
		m.transitionLocked(StateConnecting)
		m.mu.Unlock()
		break
	}

	resp, err := m.runAttempt(ctx, identity)

	m.mu.Lock()
	a.resp, a.err = resp, err
	m.attempt = nil
	if err == nil {
		m.lastResp = resp
		m.actorName = identity.ActorName
	}
	m.mu.Unlock()
	close(a.done)
	return resp, err
}

func (m *ConnManager) runAttempt(ctx context.Context, identity Identity) (wire.HandshakeResponse, error) {
	q := url.Values{}
	q.Set("apiKey", m.apiKey)
	if m.worldID != "" {
		q.Set("worldId", m.worldID)
	}

	conn, err := transport.Dial(ctx, m.baseURL, q)
	if err != nil {
		m.setState(StateFailed)
		return wire.HandshakeResponse{}, &ConnectionError{Err: err}
	}

	m.mu.Lock()
	m.conn = conn
	m.transitionLocked(StateOpen)
	m.mu.Unlock()
	m.router.SetSend(conn.Send)

	wait := m.router.AwaitHandshake()
	closed := make(chan error, 1)
	go m.readLoop(conn, closed)

	hs := wire.Handshake{
		Type:      wire.TypeHandshake,
		APIKey:    m.apiKey,
		WorldID:   m.worldID,
		ActorName: identity.ActorName,
		Metadata:  identity.Metadata,
	}
	if err := conn.Send(hs); err != nil {
		wait.Release()
		m.teardown(conn, StateFailed)
		return wire.HandshakeResponse{}, &ConnectionError{Err: err}
	}
	m.setState(StateAuthenticating)

	select {
	case hr := <-wait.C:
		if !hr.Success {
			authErr := authError(hr)
			m.logger.Warn("handshake rejected", "code", hr.ErrorCode)
			m.teardown(conn, StateFailed)
			return hr, authErr
		}
		pingCtx, cancel := context.WithCancel(context.Background())
		m.mu.Lock()
		if m.conn != conn {
			// The read loop lost the transport between handshake acceptance
			// and now; never declare Ready on a dead connection.
			m.mu.Unlock()
			cancel()
			m.teardown(conn, StateFailed)
			return wire.HandshakeResponse{}, &ConnectionError{Authenticated: true, Err: transport.ErrClosed}
		}
		m.clientID = hr.ClientID
		m.channel = hr.RedisChannel
		m.pingCancel = cancel
		m.transitionLocked(StateReady)
		m.mu.Unlock()
		conn.StartPing(pingCtx, pingInterval)
		m.logger.Info("session ready", "clientId", hr.ClientID, "actor", identity.ActorName)
		return hr, nil

	case err := <-closed:
		wait.Release()
		m.teardown(conn, StateFailed)
		return wire.HandshakeResponse{}, &ConnectionError{Err: err}

	case <-ctx.Done():
		wait.Release()
		m.teardown(conn, StateDisconnected)
		return wire.HandshakeResponse{}, fmt.Errorf("weave: connect: %w", ctx.Err())
	}
}

// readLoop pumps inbound frames into the router for the lifetime of conn.
// A read failure before Ready is reported to the in-flight connect; after
// Ready it means the connection is gone, so every pending request is
// rejected and the state resets so a later Connect can start fresh.
func (m *ConnManager) readLoop(conn *transport.Conn, closed chan<- error) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			wasReady := false
			m.mu.Lock()
			if m.conn == conn {
				wasReady = m.state == StateReady
				m.conn = nil
				if m.pingCancel != nil {
					m.pingCancel()
					m.pingCancel = nil
				}
				// Before Ready the in-flight connect owns the state; it will
				// observe the closure and settle on Failed itself.
				if wasReady {
					m.transitionLocked(StateDisconnected)
				}
			}
			m.mu.Unlock()

			if wasReady {
				m.logger.Warn("connection lost", "error", err)
				m.correlator.RejectAll(ErrConnectionLost)
			} else {
				select {
				case closed <- err:
				default:
				}
			}
			conn.Close()
			return
		}
		m.router.Dispatch(data)
	}
}

// Send writes one frame on the active transport. A failure affects only the
// caller; it does not tear the session down.
func (m *ConnManager) Send(v any) error {
	m.mu.Lock()
	conn := m.conn
	authed := m.clientID != ""
	m.mu.Unlock()
	if conn == nil {
		return &ConnectionError{Authenticated: authed, Err: transport.ErrClosed}
	}
	if err := conn.Send(v); err != nil {
		return &ConnectionError{Authenticated: authed, Err: err}
	}
	return nil
}

// Close tears the session down, rejecting anything still pending.
func (m *ConnManager) Close() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	if m.pingCancel != nil {
		m.pingCancel()
		m.pingCancel = nil
	}
	wasUp := m.state != StateDisconnected
	m.transitionLocked(StateDisconnected)
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if wasUp {
		m.correlator.RejectAll(ErrConnectionLost)
	}
}

func (m *ConnManager) teardown(conn *transport.Conn, to ConnState) {
	conn.Close()
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	m.transitionLocked(to)
	m.mu.Unlock()
}

func (m *ConnManager) setState(to ConnState) {
	m.mu.Lock()
	m.transitionLocked(to)
	m.mu.Unlock()
}

func (m *ConnManager) transitionLocked(to ConnState) {
	if m.state == to {
		return
	}
	if !canTransition(m.state, to) {
		m.logger.Debug("unexpected state transition", "from", m.state, "to", to)
	}
	m.state = to
}
