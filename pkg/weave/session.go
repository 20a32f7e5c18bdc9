// Package weave is the client SDK for the Weave orchestration service. A
// process joins a world either as a named actor — a callable endpoint that
// registers command handlers — or as an anonymous agent that invokes actors'
// commands and runs workflows. All traffic for one Session multiplexes over
// a single WebSocket; concurrent calls are correlated by request id and
// complete independently, in any order.
package weave

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"sync"

	"github.com/weavelabs/weave-go/pkg/wire"
)

// Config configures a Session. APIKey is required; WorldID is required only
// when acting as, or calling, a named actor.
type Config struct {
	// URL is the WebSocket endpoint. Defaults to DefaultURL.
	URL string

	// APIKey authenticates the session.
	APIKey string

	// WorldID scopes the session to a world.
	WorldID string

	// Debug enables protocol-level debug logging.
	Debug bool

	// Logger receives structured logs. Defaults to a text handler on stderr
	// at Info (Debug when Config.Debug is set).
	Logger *slog.Logger

	// HTTPClient serves the REST pass-through surfaces (scenes, images).
	// Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// DefaultURL is the production service endpoint.
const DefaultURL = "wss://api.weave.dev/ws"

// Session is the facade over one authenticated connection to the service.
// Create one per process identity and reuse it; it is safe for concurrent
// use.
type Session struct {
	cfg    Config
	logger *slog.Logger
	http   *http.Client

	correlator *Correlator
	registry   *Registry
	router     *Router
	conn       *ConnManager

	mu            sync.Mutex
	authenticated bool
	actorName     string
	metadata      map[string]any
}

// NewSession creates a Session. No connection is opened until the first call
// that needs one.
func NewSession(cfg Config) *Session {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	logger := cfg.Logger
	if logger == nil {
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	correlator := NewCorrelator()
	registry := NewRegistry()
	router := NewRouter(correlator, registry, logger)
	conn := NewConnManager(cfg.URL, cfg.APIKey, cfg.WorldID, router, correlator, logger)

	return &Session{
		cfg:        cfg,
		logger:     logger,
		http:       httpClient,
		correlator: correlator,
		registry:   registry,
		router:     router,
		conn:       conn,
	}
}

// Authenticate connects and performs the handshake, optionally as the named
// actor. On success the session is Ready; registered commands for that
// actor are announced (replayed) exactly once each. Passing an empty
// actorName authenticates as an anonymous agent.
func (s *Session) Authenticate(ctx context.Context, actorName string, metadata map[string]any) error {
	s.mu.Lock()
	if s.authenticated && s.actorName == actorName && s.conn.State() == StateReady {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	hr, err := s.conn.Connect(ctx, Identity{ActorName: actorName, Metadata: metadata})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.authenticated = true
	s.actorName = actorName
	if metadata != nil {
		s.metadata = metadata
	}
	// The service is authoritative for a returning actor's metadata.
	if hr.ActorInfo != nil && hr.ActorInfo.Metadata != nil {
		s.metadata = hr.ActorInfo.Metadata
	}
	s.mu.Unlock()

	if actorName != "" {
		if err := s.replayCommands(actorName); err != nil {
			return err
		}
	}
	return nil
}

// replayCommands announces every locally registered command for actor.
// Invoked right after a successful handshake as that actor; local handler
// registration itself is never re-run.
func (s *Session) replayCommands(actor string) error {
	for _, e := range s.registry.EntriesFor(actor) {
		if err := s.announce(e); err != nil {
			return fmt.Errorf("weave: replay %s.%s: %w", e.ActorName, e.CommandName, err)
		}
	}
	return nil
}

func (s *Session) announce(e CommandEntry) error {
	return s.conn.Send(wire.RegisterCommand{
		Type:           wire.TypeRegisterCommand,
		ActorName:      e.ActorName,
		CommandName:    e.CommandName,
		ParameterTypes: e.ParameterTypes,
	})
}

// RegisterCommand stores a handler for (actorName, commandName). The entry
// is announced to the service immediately only when the session is Ready
// and authenticated as that actor; otherwise the announcement is deferred
// until Authenticate succeeds as that actor. paramTypes is the declared
// ordered parameter signature.
func (s *Session) RegisterCommand(actorName, commandName string, paramTypes []string, handler CommandHandler) error {
	entry := CommandEntry{
		ActorName:      actorName,
		CommandName:    commandName,
		Handler:        handler,
		ParameterTypes: paramTypes,
	}
	s.registry.Register(entry)

	s.mu.Lock()
	announce := s.authenticated && s.actorName == actorName && s.conn.State() == StateReady
	s.mu.Unlock()

	if !announce {
		s.logger.Debug("command registration deferred",
			"actor", actorName, "command", commandName)
		return nil
	}
	return s.announce(entry)
}

// Actor returns a lightweight handle for calling the named actor. No
// connection is opened until a command is actually run.
func (s *Session) Actor(name string) *ActorHandle {
	return &ActorHandle{session: s, name: name}
}

// JoinAsActor authenticates the session as the named actor with the given
// metadata and replays its locally registered commands. The returned handle
// can also be used to call the actor's own commands.
func (s *Session) JoinAsActor(ctx context.Context, name string, metadata map[string]any) (*ActorHandle, error) {
	if err := s.Authenticate(ctx, name, metadata); err != nil {
		return nil, err
	}
	return &ActorHandle{session: s, name: name}, nil
}

// ensureConnected lazily authenticates as an anonymous agent so a bare
// Session can call into a world without an explicit Authenticate.
func (s *Session) ensureConnected(ctx context.Context) error {
	s.mu.Lock()
	ok := s.authenticated && s.conn.State() == StateReady
	name := s.actorName
	md := s.metadata
	s.mu.Unlock()
	if ok {
		return nil
	}
	return s.Authenticate(ctx, name, md)
}

// RunCommand invokes commandName on the named actor and waits for its
// response. The result is the raw JSON the handler returned; the call fails
// with a RemoteExecutionError if the handler failed remotely. There is no
// default timeout: bound the wait with the context.
func (s *Session) RunCommand(ctx context.Context, actorName, commandName string, args ...any) (json.RawMessage, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	encoded := make([]json.RawMessage, len(args))
	for i, a := range args {
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("weave: encode argument %d: %w", i, err)
		}
		encoded[i] = data
	}

	id := s.correlator.NewID()
	ch := s.correlator.Register(id)
	frame := wire.Command{
		Type:            wire.TypeCommand,
		TargetActorName: actorName,
		CommandName:     commandName,
		Args:            encoded,
		RequestID:       id,
	}
	if err := s.conn.Send(frame); err != nil {
		s.correlator.Cancel(id)
		return nil, err
	}
	out, err := s.await(ctx, id, ch)
	if err != nil {
		return nil, err
	}
	raw, _ := out.(json.RawMessage)
	return raw, nil
}

// RunWorkflow starts the named workflow with args (an arbitrary
// JSON-serializable object) and waits for its single result.
func (s *Session) RunWorkflow(ctx context.Context, workflowName string, args any) (json.RawMessage, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	id := s.correlator.NewID()
	ch := s.correlator.Register(id)
	frame := wire.Workflow{
		Type:         wire.TypeWorkflow,
		WorkflowName: workflowName,
		Args:         args,
		RequestID:    id,
	}
	if err := s.conn.Send(frame); err != nil {
		s.correlator.Cancel(id)
		return nil, err
	}
	out, err := s.await(ctx, id, ch)
	if err != nil {
		return nil, err
	}
	raw, _ := out.(json.RawMessage)
	return raw, nil
}

// ListWorkflows returns the world's workflow catalog.
func (s *Session) ListWorkflows(ctx context.Context) ([]wire.WorkflowDescriptor, error) {
	if err := s.ensureConnected(ctx); err != nil {
		return nil, err
	}

	id := s.correlator.NewID()
	ch := s.correlator.Register(id)
	frame := wire.ListWorkflows{Type: wire.TypeListWorkflows, RequestID: id}
	if err := s.conn.Send(frame); err != nil {
		s.correlator.Cancel(id)
		return nil, err
	}
	out, err := s.await(ctx, id, ch)
	if err != nil {
		return nil, err
	}
	descriptors, _ := out.([]wire.WorkflowDescriptor)
	return descriptors, nil
}

// await blocks until the request completes or ctx ends. Cancellation removes
// the pending entry so a late response is dropped instead of leaking.
func (s *Session) await(ctx context.Context, id string, ch <-chan Outcome) (any, error) {
	select {
	case out := <-ch:
		return out.Value, out.Err
	case <-ctx.Done():
		s.correlator.Cancel(id)
		return nil, ctx.Err()
	}
}

// State reports the connection phase.
func (s *Session) State() ConnState { return s.conn.State() }

// ClientID returns the id the service assigned at handshake, or "" before
// the session is Ready.
func (s *Session) ClientID() string { return s.conn.ClientID() }

// Metadata returns a copy of the session's current actor metadata bag.
func (s *Session) Metadata() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.metadata)
}

// Listen subscribes fn to inbound frames of an application-defined type the
// router does not consume itself.
func (s *Session) Listen(frameType wire.FrameType, fn func(wire.RawFrame)) {
	s.router.Listen(frameType, fn)
}

// Close tears down the connection. Pending requests are rejected with
// ErrConnectionLost. The Session can be reused; the next call reconnects.
func (s *Session) Close() {
	s.mu.Lock()
	s.authenticated = false
	s.mu.Unlock()
	s.conn.Close()
}
