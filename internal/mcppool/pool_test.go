package mcppool_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayrun/convorch/internal/mcppool"
)

type rpcEnvelope struct {
	Method string `json:"method"`
	ID     uint64 `json:"id"`
}

func writeRPCResult(w http.ResponseWriter, id uint64, result any) {
	data, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
	w.Write(data)
}

func newTestServer(t *testing.T, toolResultText string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req rpcEnvelope
		_ = json.Unmarshal(body, &req)
		switch req.Method {
		case "initialize":
			writeRPCResult(w, req.ID, map[string]any{"capabilities": map[string]any{}})
		case "tools/call":
			writeRPCResult(w, req.ID, map[string]any{
				"content": []map[string]any{{"type": "text", "text": toolResultText, "mimeType": "application/json"}},
			})
		default:
			http.Error(w, "unknown method", http.StatusBadRequest)
		}
	}))
}

type recordingCaller struct {
	mcppool.Caller
	record *string
}

func (c recordingCaller) CallTool(ctx context.Context, req mcppool.CallRequest) (mcppool.CallResponse, error) {
	*c.record = req.Tool
	return c.Caller.CallTool(ctx, req)
}

func TestPoolNamingPolicyDirect(t *testing.T) {
	srv := newTestServer(t, `{"ok":true}`)
	defer srv.Close()

	var calledTool string
	factory := mcppool.HTTPCallerFactory(mcppool.HTTPOptions{Endpoint: srv.URL})
	pool := mcppool.NewPool(func(ctx context.Context, endpoint string) (mcppool.Caller, error) {
		c, err := factory(ctx, endpoint)
		return recordingCaller{Caller: c, record: &calledTool}, err
	}, mcppool.NamingPolicy{Proxy: false})

	_, err := pool.Call(context.Background(), srv.URL, "weather-svc", "historical", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Equal(t, "historical", calledTool)
}

func TestPoolNamingPolicyProxy(t *testing.T) {
	srv := newTestServer(t, `{"ok":true}`)
	defer srv.Close()

	var calledTool string
	factory := mcppool.HTTPCallerFactory(mcppool.HTTPOptions{Endpoint: srv.URL})
	pool := mcppool.NewPool(func(ctx context.Context, endpoint string) (mcppool.Caller, error) {
		c, err := factory(ctx, endpoint)
		return recordingCaller{Caller: c, record: &calledTool}, err
	}, mcppool.NamingPolicy{Proxy: true})

	_, err := pool.Call(context.Background(), srv.URL, "weather-svc", "historical", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Equal(t, "weather-svc_historical", calledTool)
}

func TestPoolReusesSession(t *testing.T) {
	var initCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req rpcEnvelope
		_ = json.Unmarshal(body, &req)
		if req.Method == "initialize" {
			initCount++
			writeRPCResult(w, req.ID, map[string]any{"capabilities": map[string]any{}})
			return
		}
		writeRPCResult(w, req.ID, map[string]any{
			"content": []map[string]any{{"type": "text", "text": "ok"}},
		})
	}))
	defer srv.Close()

	pool := mcppool.NewPool(mcppool.HTTPCallerFactory(mcppool.HTTPOptions{Endpoint: srv.URL}), mcppool.NamingPolicy{})
	_, err := pool.Call(context.Background(), srv.URL, "", "weather_forecast", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = pool.Call(context.Background(), srv.URL, "", "weather_forecast", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Equal(t, 1, initCount)
}

func TestRemoteErrorClassifiesProtocolAsNotRetriable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req rpcEnvelope
		_ = json.Unmarshal(body, &req)
		if req.Method == "initialize" {
			writeRPCResult(w, req.ID, map[string]any{"capabilities": map[string]any{}})
			return
		}
		data, _ := json.Marshal(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": -32602, "message": "invalid arguments"},
		})
		w.Write(data)
	}))
	defer srv.Close()

	pool := mcppool.NewPool(mcppool.HTTPCallerFactory(mcppool.HTTPOptions{Endpoint: srv.URL}), mcppool.NamingPolicy{})
	_, err := pool.Call(context.Background(), srv.URL, "", "historical", json.RawMessage(`{}`))
	require.Error(t, err)
	var remoteErr *mcppool.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	require.Equal(t, mcppool.Protocol, remoteErr.Kind)
	require.False(t, remoteErr.Retriable)
	require.NotEmpty(t, remoteErr.RepairHint)
}
