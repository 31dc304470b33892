package mcp

import (
	"encoding/json"
	"fmt"
)

// Resource represents a static resource
type Resource struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// GetResourceDefinitions lists the readable resources.
func (s *MCPServer) GetResourceDefinitions() []Resource {
	return []Resource{
		{URI: "tfmcp://status", Name: "Cache and registry status", MimeType: "application/json"},
		{URI: "tfmcp://config", Name: "Effective configuration", MimeType: "application/json"},
	}
}

func (s *MCPServer) handleReadResource(params map[string]interface{}) (interface{}, *MCPError) {
	uri, ok := params["uri"].(string)
	if !ok || uri == "" {
		return nil, &MCPError{Code: InvalidParams, Message: "Invalid params: missing uri"}
	}
	s.logger.Debug("Reading resource", "uri", uri)

	var data interface{}
	switch uri {
	case "tfmcp://status":
		data = s.engine.CacheStats()
	case "tfmcp://config":
		data = s.engine.Config()
	default:
		return nil, &MCPError{Code: InvalidParams, Message: fmt.Sprintf("Unknown resource: %s", uri)}
	}

	text, err := json.Marshal(data)
	if err != nil {
		return nil, &MCPError{Code: InternalError, Message: err.Error()}
	}
	return map[string]interface{}{
		"contents": []map[string]interface{}{
			{"uri": uri, "mimeType": "application/json", "text": string(text)},
		},
	}, nil
}
