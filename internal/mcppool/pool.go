package mcppool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// NamingPolicy implements the proxy/direct tool-naming rule (§4.3): when a
// deployment fronts several tool servers with one proxy endpoint, the
// effective server-tool-name is "{server_namespace}_{tool_name}"; when
// talking to a server directly, it is "{tool_name}" unprefixed.
type NamingPolicy struct {
	Proxy bool
}

// EffectiveName computes the tool name sent on the wire.
func (p NamingPolicy) EffectiveName(serverNamespace, toolName string) string {
	if p.Proxy && serverNamespace != "" {
		return serverNamespace + "_" + toolName
	}
	return toolName
}

// Session is a pooled, opened connection to one tool-server endpoint.
// Within a session, calls are issued sequentially and responses matched in
// order; the pool does not assume pipelining.
type Session struct {
	mu     sync.Mutex
	caller Caller
}

// CallTool invokes server-tool-name with arguments over this session.
func (s *Session) CallTool(ctx context.Context, serverToolName string, args json.RawMessage) (CallResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caller.CallTool(ctx, CallRequest{Tool: serverToolName, Payload: args})
}

// ListTools returns the tool-server's advertised catalog over this session.
func (s *Session) ListTools(ctx context.Context) ([]ToolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caller.ListTools(ctx)
}

// CallerFactory opens a new Caller for an endpoint. Production code supplies
// NewHTTPCaller; tests supply a stub.
type CallerFactory func(ctx context.Context, endpoint string) (Caller, error)

// Pool manages pooled, reusable sessions to tool-server endpoints, keyed by
// endpoint URL. It is a process-wide shared resource (§5): activities borrow
// a session via SessionFor and return it implicitly by releasing the
// reference; sessions are not handed out for concurrent use by more than
// one in-flight call at a time.
type Pool struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  CallerFactory
	naming   NamingPolicy
}

// NewPool constructs a Pool. factory opens the underlying transport for an
// endpoint the first time it is needed.
func NewPool(factory CallerFactory, naming NamingPolicy) *Pool {
	return &Pool{
		sessions: make(map[string]*Session),
		factory:  factory,
		naming:   naming,
	}
}

// SessionFor returns a pooled, opened session for endpoint, creating one on
// demand.
func (p *Pool) SessionFor(ctx context.Context, endpoint string) (*Session, error) {
	p.mu.Lock()
	if s, ok := p.sessions[endpoint]; ok {
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	caller, err := p.factory(ctx, endpoint)
	if err != nil {
		return nil, &RemoteError{Kind: Transport, Retriable: true, Message: fmt.Sprintf("open session to %s: %v", endpoint, err), Cause: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[endpoint]; ok {
		return s, nil
	}
	s := &Session{caller: caller}
	p.sessions[endpoint] = s
	return s, nil
}

// Call resolves the effective server-tool-name per the naming policy and
// dispatches through the pooled session for endpoint.
func (p *Pool) Call(ctx context.Context, endpoint, serverNamespace, toolName string, args json.RawMessage) (CallResponse, error) {
	s, err := p.SessionFor(ctx, endpoint)
	if err != nil {
		return CallResponse{}, err
	}
	effective := p.naming.EffectiveName(serverNamespace, toolName)
	return s.CallTool(ctx, effective, args)
}

// ListTools discovers endpoint's tool catalog via the pooled session,
// opening one on demand. Used once at worker startup to populate the
// remote tool registry (§4.3) without requiring the workflow itself to
// perform I/O.
func (p *Pool) ListTools(ctx context.Context, endpoint string) ([]ToolInfo, error) {
	s, err := p.SessionFor(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return s.ListTools(ctx)
}

// Shutdown drains and closes all sessions. The HTTP transport holds no
// persistent connections beyond the standard library's own keep-alive
// pool, so this only drops the Pool's references.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = make(map[string]*Session)
}

// HTTPCallerFactory returns a CallerFactory that opens an HTTPCaller per
// endpoint using opts as a template (Endpoint is overridden per call).
func HTTPCallerFactory(opts HTTPOptions) CallerFactory {
	return func(ctx context.Context, endpoint string) (Caller, error) {
		o := opts
		o.Endpoint = endpoint
		return NewHTTPCaller(ctx, o)
	}
}
