package mcp

// MCPMessage is a JSON-RPC 2.0 message.
type MCPMessage struct {
	Jsonrpc string      `json:"jsonrpc"`
	Id      interface{} `json:"id,omitempty"`
	Method  string      `json:"method,omitempty"`
	Params  interface{} `json:"params,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError is a JSON-RPC 2.0 error object.
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *MCPError) Error() string {
	return e.Message
}

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// NewErrorMessage creates an error response.
func NewErrorMessage(id interface{}, code int, message string, data interface{}) *MCPMessage {
	return &MCPMessage{
		Jsonrpc: "2.0",
		Id:      id,
		Error:   &MCPError{Code: code, Message: message, Data: data},
	}
}

// NewResultMessage creates a result response.
func NewResultMessage(id interface{}, result interface{}) *MCPMessage {
	return &MCPMessage{Jsonrpc: "2.0", Id: id, Result: result}
}

// IsRequest reports whether the message expects a response.
func (m *MCPMessage) IsRequest() bool {
	return m.Method != "" && m.Id != nil
}

// IsNotification reports whether the message is a notification (no id).
func (m *MCPMessage) IsNotification() bool {
	return m.Method != "" && m.Id == nil
}
