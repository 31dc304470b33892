package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"tfmcp/internal/config"
	"tfmcp/internal/envelope"
	"tfmcp/internal/query"
)

// testRegistry serves canned JSON by path and counts requests.
type testRegistry struct {
	mu     sync.Mutex
	routes map[string]any
	hits   map[string]int
	server *httptest.Server
}

func newTestRegistry(t *testing.T) *testRegistry {
	t.Helper()
	r := &testRegistry{routes: map[string]any{}, hits: map[string]int{}}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.hits[req.URL.Path]++
		body, ok := r.routes[req.URL.Path]
		r.mu.Unlock()
		if !ok {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *testRegistry) route(path string, body any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[path] = body
}

func (r *testRegistry) hitCount(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[path]
}

func providerBody(ns, name, version string) map[string]any {
	return map[string]any{
		"id":        ns + "/" + name + "/" + version,
		"namespace": ns,
		"name":      name,
		"version":   version,
		"docs": []map[string]any{
			{"id": "1", "title": name + "_instance", "slug": "instance", "category": "resources"},
		},
	}
}

// newTestMCPServer creates a server against baseURL with retries off.
func newTestMCPServer(t *testing.T, baseURL string) *MCPServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Registry.BaseURL = baseURL
	cfg.Registry.RetryMax = 0
	engine, err := query.NewEngine(cfg, query.Options{})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return NewMCPServer("test", engine, nil)
}

func request(method string, id int, params interface{}) *MCPMessage {
	return &MCPMessage{Jsonrpc: "2.0", Id: id, Method: method, Params: params}
}

// callTool runs a tool through tools/call and decodes the envelope.
func callTool(t *testing.T, s *MCPServer, name string, args map[string]interface{}) (*envelope.Response, bool) {
	t.Helper()
	text, isError := callToolText(t, s, name, args)
	var env envelope.Response
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	return &env, isError
}

// callToolText returns the raw envelope JSON of a tools/call.
func callToolText(t *testing.T, s *MCPServer, name string, args map[string]interface{}) (string, bool) {
	t.Helper()
	params := map[string]interface{}{"name": name, "arguments": args}
	resp := s.handleMessage(context.Background(), request("tools/call", 1, params))
	if resp == nil || resp.Error != nil {
		t.Fatalf("tools/call %s: unexpected protocol response %+v", name, resp)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result is %T", resp.Result)
	}
	content := result["content"].([]map[string]interface{})
	isError, _ := result["isError"].(bool)
	return content[0]["text"].(string), isError
}

// decodeData re-decodes an envelope payload into out.
func decodeData(t *testing.T, env *envelope.Response, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
}

func writeTF(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
