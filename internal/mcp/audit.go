package mcp

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"tfmcp/internal/errors"
)

// auditRecord is one line of the audit log.
type auditRecord struct {
	RequestID  string                 `json:"requestId"`
	Time       string                 `json:"time"`
	Tool       string                 `json:"tool"`
	Params     map[string]interface{} `json:"params,omitempty"`
	DurationMs int64                  `json:"durationMs"`
	Outcome    string                 `json:"outcome"`
	ErrorCode  errors.ErrorCode       `json:"errorCode,omitempty"`
}

type auditLog struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newAuditLog(w io.Writer) *auditLog {
	return &auditLog{enc: json.NewEncoder(w)}
}

func newRequestID() string {
	return uuid.NewString()
}

func (a *auditLog) record(r auditRecord) error {
	if r.Time == "" {
		r.Time = time.Now().UTC().Format(time.RFC3339Nano)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enc.Encode(r)
}
