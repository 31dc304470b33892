package slogutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/klauspost/compress/gzip"

	"tfmcp/internal/config"
)

// LokiHandler buffers records and pushes them to Grafana Loki in batches,
// one stream per level.
type LokiHandler struct {
	endpoint      string
	labels        map[string]string
	batchSize     int
	flushInterval time.Duration
	level         slog.Level
	client        *http.Client

	mu     sync.Mutex
	buffer []lokiEntry
	done   chan struct{}
	wg     sync.WaitGroup
	sends  sync.WaitGroup
}

type lokiEntry struct {
	ts    time.Time
	line  string
	level string
}

type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// NewLokiHandler creates a handler for cfg. baseLabels apply to every
// stream; labels from cfg win on conflict.
func NewLokiHandler(cfg *config.RemoteLogConfig, baseLabels map[string]string, level slog.Level) (*LokiHandler, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("loki endpoint is required")
	}
	labels := map[string]string{}
	for k, v := range baseLabels {
		labels[k] = v
	}
	for k, v := range cfg.Labels {
		labels[k] = v
	}
	if _, ok := labels["host"]; !ok {
		if hostname, err := os.Hostname(); err == nil {
			labels["host"] = hostname
		}
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := 5 * time.Second
	if d, err := time.ParseDuration(cfg.FlushInterval); err == nil && d > 0 {
		flushInterval = d
	}

	client := cleanhttp.DefaultClient()
	client.Timeout = 10 * time.Second
	return &LokiHandler{
		endpoint:      cfg.Endpoint + "/loki/api/v1/push",
		labels:        labels,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		level:         level,
		client:        client,
		buffer:        make([]lokiEntry, 0, batchSize),
		done:          make(chan struct{}),
	}, nil
}

// Start begins periodic flushing.
func (h *LokiHandler) Start() {
	h.wg.Add(1)
	go h.flushLoop()
}

// Stop flushes what is buffered and waits for in-flight pushes.
func (h *LokiHandler) Stop() error {
	close(h.done)
	h.wg.Wait()
	h.mu.Lock()
	h.flushLocked()
	h.mu.Unlock()
	h.sends.Wait()
	return nil
}

// Close is Stop, so the handler can sit with the factory's other closers.
func (h *LokiHandler) Close() error { return h.Stop() }

// Enabled implements slog.Handler.
func (h *LokiHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler.
func (h *LokiHandler) Handle(_ context.Context, r slog.Record) error {
	return h.handle(r, nil)
}

func (h *LokiHandler) handle(r slog.Record, bound []slog.Attr) error {
	line := formatLokiLine(r, bound)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buffer = append(h.buffer, lokiEntry{ts: r.Time, line: line, level: levelString(r.Level)})
	if len(h.buffer) >= h.batchSize {
		h.flushLocked()
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *LokiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &boundLoki{parent: h, attrs: attrs}
}

// WithGroup implements slog.Handler. Groups prefix keys of later attrs.
func (h *LokiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &boundLoki{parent: h, group: name}
}

// boundLoki carries attrs and a group prefix without copying the parent's
// buffer and locks.
type boundLoki struct {
	parent *LokiHandler
	attrs  []slog.Attr
	group  string
}

func (b *boundLoki) Enabled(ctx context.Context, level slog.Level) bool {
	return b.parent.Enabled(ctx, level)
}

func (b *boundLoki) Handle(_ context.Context, r slog.Record) error {
	attrs := append([]slog.Attr(nil), b.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if b.group != "" {
			a.Key = b.group + "." + a.Key
		}
		attrs = append(attrs, a)
		return true
	})
	bare := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	return b.parent.handle(bare, attrs)
}

func (b *boundLoki) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &boundLoki{parent: b.parent, group: b.group}
	next.attrs = append(append([]slog.Attr(nil), b.attrs...), b.prefixed(attrs)...)
	return next
}

func (b *boundLoki) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	g := name
	if b.group != "" {
		g = b.group + "." + name
	}
	return &boundLoki{parent: b.parent, attrs: b.attrs, group: g}
}

func (b *boundLoki) prefixed(attrs []slog.Attr) []slog.Attr {
	if b.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: b.group + "." + a.Key, Value: a.Value}
	}
	return out
}

// formatLokiLine renders logfmt: level=info msg="..." key=value.
func formatLokiLine(r slog.Record, bound []slog.Attr) string {
	var buf bytes.Buffer
	buf.WriteString("level=")
	buf.WriteString(levelString(r.Level))
	buf.WriteString(" msg=")
	buf.WriteString(strconv.Quote(r.Message))
	write := func(a slog.Attr) {
		buf.WriteByte(' ')
		buf.WriteString(a.Key)
		buf.WriteByte('=')
		if a.Value.Kind() == slog.KindString {
			buf.WriteString(strconv.Quote(a.Value.String()))
		} else {
			buf.WriteString(formatValue(a.Value))
		}
	}
	for _, a := range bound {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	return buf.String()
}

func (h *LokiHandler) flushLoop() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.mu.Lock()
			h.flushLocked()
			h.mu.Unlock()
		case <-h.done:
			return
		}
	}
}

// flushLocked hands the buffer to a background push. h.mu must be held.
func (h *LokiHandler) flushLocked() {
	if len(h.buffer) == 0 {
		return
	}
	byLevel := map[string][]lokiEntry{}
	for _, e := range h.buffer {
		byLevel[e.level] = append(byLevel[e.level], e)
	}
	levels := make([]string, 0, len(byLevel))
	for l := range byLevel {
		levels = append(levels, l)
	}
	sort.Strings(levels)

	req := lokiPushRequest{Streams: make([]lokiStream, 0, len(levels))}
	for _, level := range levels {
		labels := make(map[string]string, len(h.labels)+1)
		for k, v := range h.labels {
			labels[k] = v
		}
		labels["level"] = level
		entries := byLevel[level]
		values := make([][]string, len(entries))
		for i, e := range entries {
			values[i] = []string{strconv.FormatInt(e.ts.UnixNano(), 10), e.line}
		}
		req.Streams = append(req.Streams, lokiStream{Stream: labels, Values: values})
	}
	h.buffer = h.buffer[:0]

	h.sends.Add(1)
	go h.send(req)
}

// send pushes one batch. Failures are dropped so logging never recurses.
func (h *LokiHandler) send(req lokiPushRequest) {
	defer h.sends.Done()
	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	if err := json.NewEncoder(zw).Encode(req); err != nil {
		return
	}
	if err := zw.Close(); err != nil {
		return
	}
	httpReq, err := http.NewRequest(http.MethodPost, h.endpoint, &body)
	if err != nil {
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Content-Encoding", "gzip")
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}
