package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMCPErrorError(t *testing.T) {
	tests := []struct {
		name    string
		err     *MCPError
		wantMsg string
	}{
		{"simple message", &MCPError{Code: ParseError, Message: "parse error"}, "parse error"},
		{"empty message", &MCPError{Code: InternalError}, ""},
		{"with data", &MCPError{Code: InvalidParams, Message: "invalid params", Data: map[string]string{"field": "name"}}, "invalid params"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestMessageKinds(t *testing.T) {
	tests := []struct {
		name             string
		msg              MCPMessage
		wantReq, wantNot bool
	}{
		{"request", MCPMessage{Method: "tools/list", Id: 1}, true, false},
		{"notification", MCPMessage{Method: "notifications/initialized"}, false, true},
		{"response", MCPMessage{Id: 1, Result: "x"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsRequest(); got != tt.wantReq {
				t.Errorf("IsRequest = %v", got)
			}
			if got := tt.msg.IsNotification(); got != tt.wantNot {
				t.Errorf("IsNotification = %v", got)
			}
		})
	}
}

func TestInitialize(t *testing.T) {
	s := newTestMCPServer(t, "https://registry.invalid")
	params := map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"clientInfo":      map[string]interface{}{"name": "test-client"},
	}
	resp := s.handleMessage(context.Background(), request("initialize", 1, params))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	result, ok := resp.Result.(*InitializeResult)
	if !ok {
		t.Fatalf("Result should be *InitializeResult, got %T", resp.Result)
	}
	if result.ProtocolVersion != ProtocolVersion || result.ServerInfo.Name != "tfmcp" || result.ServerInfo.Version != "test" {
		t.Errorf("result = %+v", result)
	}
	if result.Capabilities.Tools == nil {
		t.Error("tools capability missing")
	}
}

func TestToolsList(t *testing.T) {
	s := newTestMCPServer(t, "https://registry.invalid")
	resp := s.handleMessage(context.Background(), request("tools/list", 2, nil))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	tools := resp.Result.(map[string]interface{})["tools"].([]Tool)

	var names []string
	for _, tool := range tools {
		names = append(names, tool.Name)
		if tool.Description == "" || tool.InputSchema["type"] != "object" {
			t.Errorf("tool %s has incomplete definition", tool.Name)
		}
		if _, ok := s.tools[tool.Name]; !ok {
			t.Errorf("tool %s has no handler", tool.Name)
		}
	}
	want := []string{
		"resolveProvider", "resolveModule", "resolveBatch", "listVersions",
		"searchProviders", "searchModules", "getProviderDocs", "buildDependencyGraph",
		"analyzeModuleHealth", "suggestRefactoring", "resolveDependencies", "getCacheStats",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("tool names mismatch (-want +got):\n%s", diff)
	}
	if len(s.tools) != len(want) {
		t.Errorf("registered %d handlers, want %d", len(s.tools), len(want))
	}
}

func TestProtocolErrors(t *testing.T) {
	s := newTestMCPServer(t, "https://registry.invalid")
	ctx := context.Background()

	tests := []struct {
		name string
		msg  *MCPMessage
		want int
	}{
		{"unknown method", request("bogus/method", 1, nil), MethodNotFound},
		{"wrong version", &MCPMessage{Jsonrpc: "1.0", Id: 1, Method: "tools/list"}, InvalidRequest},
		{"call without params", request("tools/call", 1, nil), InvalidParams},
		{"unknown tool", request("tools/call", 1, map[string]interface{}{"name": "nope"}), InvalidParams},
		{"missing tool name", request("tools/call", 1, map[string]interface{}{}), InvalidParams},
		{"unknown resource", request("resources/read", 1, map[string]interface{}{"uri": "tfmcp://nope"}), InvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.handleMessage(ctx, tt.msg)
			if resp == nil || resp.Error == nil {
				t.Fatalf("expected error response, got %+v", resp)
			}
			if resp.Error.Code != tt.want {
				t.Errorf("code = %d, want %d", resp.Error.Code, tt.want)
			}
		})
	}

	if resp := s.handleMessage(ctx, &MCPMessage{Jsonrpc: "2.0", Method: "notifications/initialized"}); resp != nil {
		t.Errorf("notification produced a response: %+v", resp)
	}
	if resp := s.handleMessage(ctx, &MCPMessage{Jsonrpc: "2.0", Id: 9, Result: map[string]interface{}{}}); resp != nil {
		t.Errorf("client response produced a response: %+v", resp)
	}
}

func TestStartLoop(t *testing.T) {
	s := newTestMCPServer(t, "https://registry.invalid")
	s.sweepEvery = time.Hour

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		``,
		`{not json`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	}, "\n") + "\n"
	var out bytes.Buffer
	s.SetStdin(strings.NewReader(input))
	s.SetStdout(&out)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start returned %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d responses, want 3:\n%s", len(lines), out.String())
	}
	var msgs []MCPMessage
	for _, line := range lines {
		var m MCPMessage
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad output line %q: %v", line, err)
		}
		msgs = append(msgs, m)
	}
	if msgs[0].Id != float64(1) || msgs[0].Error != nil {
		t.Errorf("first response = %+v", msgs[0])
	}
	if msgs[1].Error == nil || msgs[1].Error.Code != ParseError || msgs[1].Id != nil {
		t.Errorf("second response = %+v", msgs[1])
	}
	if msgs[2].Id != float64(2) || msgs[2].Result == nil {
		t.Errorf("third response = %+v", msgs[2])
	}
}

func TestStartRejectsOversizedMessage(t *testing.T) {
	s := newTestMCPServer(t, "https://registry.invalid")
	s.sweepEvery = time.Hour

	big := `{"jsonrpc":"2.0","id":1,"method":"ping","params":{"pad":"` + strings.Repeat("x", MaxMessageSize) + `"}}`
	input := big + "\n" + `{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n"
	var out bytes.Buffer
	s.SetStdin(strings.NewReader(input))
	s.SetStdout(&out)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start returned %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d responses, want 2", len(lines))
	}
	var first, second MCPMessage
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if first.Error == nil || first.Error.Code != InvalidRequest || first.Id != nil {
		t.Errorf("oversized message response = %+v", first)
	}
	if second.Id != float64(2) || second.Error != nil {
		t.Errorf("following message response = %+v", second)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	s := newTestMCPServer(t, "https://registry.invalid")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.SetStdin(strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n"))
	var out bytes.Buffer
	s.SetStdout(&out)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start returned %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("cancelled server wrote %q", out.String())
	}
}

func TestSweepInterval(t *testing.T) {
	s := newTestMCPServer(t, "https://registry.invalid")
	if got := s.sweepInterval(); got != 300*time.Second {
		t.Errorf("sweepInterval = %v, want 300s", got)
	}
	s.sweepEvery = time.Second
	if got := s.sweepInterval(); got != time.Second {
		t.Errorf("override = %v", got)
	}
}

func TestResources(t *testing.T) {
	s := newTestMCPServer(t, "https://registry.invalid")
	ctx := context.Background()

	list := s.handleMessage(ctx, request("resources/list", 1, nil))
	resources := list.Result.(map[string]interface{})["resources"].([]Resource)
	if len(resources) != 2 {
		t.Fatalf("resources = %+v", resources)
	}

	read := s.handleMessage(ctx, request("resources/read", 2, map[string]interface{}{"uri": "tfmcp://config"}))
	if read.Error != nil {
		t.Fatalf("unexpected error: %v", read.Error)
	}
	contents := read.Result.(map[string]interface{})["contents"].([]map[string]interface{})
	if !strings.Contains(contents[0]["text"].(string), "https://registry.invalid") {
		t.Errorf("config resource = %v", contents[0]["text"])
	}
}
