package weave

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/weavelabs/weave-go/pkg/wire"
)

// sendFunc writes one frame to the transport. Provided by the connection
// manager so the router never touches the socket directly.
type sendFunc func(v any) error

// HandshakeWait is a one-shot subscription for the next HANDSHAKE_RESPONSE.
// It is released automatically when the frame is delivered; Release drops it
// early (e.g. when the connect attempt is abandoned).
type HandshakeWait struct {
	C      chan wire.HandshakeResponse
	router *Router
}

func (w *HandshakeWait) Release() {
	w.router.mu.Lock()
	if w.router.handshakeWait == w {
		w.router.handshakeWait = nil
	}
	w.router.mu.Unlock()
}

// Router classifies each inbound frame by its type discriminator and hands
// it to the correlator, a registered command handler, or an application
// listener. Malformed frames are dropped; a failing handler is converted to
// an error RESPONSE and never escapes.
type Router struct {
	correlator *Correlator
	registry   *Registry
	logger     *slog.Logger

	mu            sync.Mutex
	send          sendFunc
	handshakeWait *HandshakeWait
	listeners     map[wire.FrameType][]func(wire.RawFrame)
}

func NewRouter(correlator *Correlator, registry *Registry, logger *slog.Logger) *Router {
	return &Router{
		correlator: correlator,
		registry:   registry,
		logger:     logger,
		listeners:  make(map[wire.FrameType][]func(wire.RawFrame)),
	}
}

// SetSend installs the transport write function for the current connection.
func (r *Router) SetSend(fn sendFunc) {
	r.mu.Lock()
	r.send = fn
	r.mu.Unlock()
}

// AwaitHandshake registers a one-shot wait for the next HANDSHAKE_RESPONSE.
// Only one wait can be outstanding; a new one replaces the old.
func (r *Router) AwaitHandshake() *HandshakeWait {
	w := &HandshakeWait{C: make(chan wire.HandshakeResponse, 1), router: r}
	r.mu.Lock()
	r.handshakeWait = w
	r.mu.Unlock()
	return w
}

// Listen registers fn for frames of type t that the router does not handle
// itself. Unmatched frame types without listeners are dropped.
func (r *Router) Listen(t wire.FrameType, fn func(wire.RawFrame)) {
	r.mu.Lock()
	r.listeners[t] = append(r.listeners[t], fn)
	r.mu.Unlock()
}

// Dispatch routes one inbound frame. It never panics and never blocks on a
// command handler: each handler invocation runs in its own goroutine.
func (r *Router) Dispatch(data []byte) {
	rf, err := wire.DecodeRaw(data)
	if err != nil {
		r.logger.Debug("dropping malformed frame", "error", &ProtocolError{Err: err})
		return
	}

	switch rf.Type {
	case wire.TypeHandshakeResponse:
		var hr wire.HandshakeResponse
		if err := json.Unmarshal(rf.Raw, &hr); err != nil {
			r.logger.Debug("dropping malformed handshake response", "error", err)
			return
		}
		r.mu.Lock()
		w := r.handshakeWait
		r.handshakeWait = nil // one-shot: detach on delivery
		r.mu.Unlock()
		if w == nil {
			r.logger.Debug("handshake response with no waiter")
			return
		}
		w.C <- hr

	case wire.TypeCommand:
		var cmd wire.Command
		if err := json.Unmarshal(rf.Raw, &cmd); err != nil {
			r.logger.Debug("dropping malformed command", "error", err)
			return
		}
		go r.runCommand(cmd)

	case wire.TypeResponse:
		resp, err := wire.DecodeResponse(rf.Raw)
		if err != nil {
			r.logger.Debug("dropping malformed response", "error", err)
			return
		}
		if resp.Error != "" {
			r.correlator.Reject(resp.RequestID, &RemoteExecutionError{Message: resp.Error})
			return
		}
		r.correlator.Resolve(resp.RequestID, resp.Result)

	case wire.TypeWorkflowResult:
		var res wire.WorkflowResult
		if err := json.Unmarshal(rf.Raw, &res); err != nil {
			r.logger.Debug("dropping malformed workflow result", "error", err)
			return
		}
		if res.Error != "" {
			r.correlator.Reject(res.RequestID, &RemoteExecutionError{Message: res.Error})
			return
		}
		r.correlator.Resolve(res.RequestID, res.Result)

	case wire.TypeWorkflowList:
		var list wire.WorkflowList
		if err := json.Unmarshal(rf.Raw, &list); err != nil {
			r.logger.Debug("dropping malformed workflow list", "error", err)
			return
		}
		if list.Error != "" {
			r.correlator.Reject(list.RequestID, &RemoteExecutionError{Message: list.Error})
			return
		}
		r.correlator.Resolve(list.RequestID, list.Workflows)

	default:
		r.mu.Lock()
		fns := r.listeners[rf.Type]
		r.mu.Unlock()
		if len(fns) == 0 {
			r.logger.Debug("dropping unhandled frame", "type", rf.Type)
			return
		}
		for _, fn := range fns {
			fn(rf)
		}
	}
}

// runCommand executes one inbound command invocation and always sends back
// exactly one RESPONSE frame.
func (r *Router) runCommand(cmd wire.Command) {
	resp := wire.Response{
		Type:          wire.TypeResponse,
		TargetChannel: cmd.SourceChannel,
		RequestID:     cmd.RequestID,
	}

	entry, ok := r.registry.Lookup(cmd.TargetActorName, cmd.CommandName)
	if !ok {
		// The service should never route a command here that this process
		// didn't register; answering explicitly keeps the remote caller from
		// hanging if it does.
		r.logger.Debug("command for unregistered handler",
			"actor", cmd.TargetActorName, "command", cmd.CommandName)
		resp.Error = fmt.Sprintf("unknown command %q for actor %q", cmd.CommandName, cmd.TargetActorName)
		r.sendResponse(resp)
		return
	}

	args := make([]any, len(cmd.Args))
	for i, raw := range cmd.Args {
		if err := json.Unmarshal(raw, &args[i]); err != nil {
			resp.Error = fmt.Sprintf("invalid argument %d: %v", i, err)
			r.sendResponse(resp)
			return
		}
	}

	result, err := invokeHandler(entry.Handler, args)
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Result = result
	}
	r.sendResponse(resp)
}

func (r *Router) sendResponse(resp wire.Response) {
	r.mu.Lock()
	send := r.send
	r.mu.Unlock()
	if send == nil {
		r.logger.Debug("no transport for response", "requestId", resp.RequestID)
		return
	}
	if err := send(resp); err != nil {
		r.logger.Warn("failed to send command response",
			"requestId", resp.RequestID, "error", err)
	}
}

// invokeHandler runs the handler, converting a panic into an error so a
// misbehaving handler cannot take down the router.
func invokeHandler(h CommandHandler, args []any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()
	return h(context.Background(), args)
}
