// Package mcp serves the query facade as Model Context Protocol tools over
// newline-delimited JSON-RPC 2.0 on stdio.
package mcp

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"tfmcp/internal/query"
)

// MCPServer represents the MCP server
type MCPServer struct {
	stdin   io.Reader
	stdout  io.Writer
	reader  *bufio.Reader
	writeMu sync.Mutex

	logger  *slog.Logger
	version string
	engine  *query.Engine
	tools   map[string]ToolHandler
	audit   *auditLog

	// sweepEvery overrides the configured cache sweep interval when set.
	sweepEvery time.Duration
}

// NewMCPServer creates a server reading stdin and writing stdout.
func NewMCPServer(version string, engine *query.Engine, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	server := &MCPServer{
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		logger:  logger,
		version: version,
		engine:  engine,
		tools:   make(map[string]ToolHandler),
	}
	server.RegisterTools()
	return server
}

// SetStdin sets the input stream (for testing)
func (s *MCPServer) SetStdin(r io.Reader) {
	s.stdin = r
	s.reader = nil
}

// SetStdout sets the output stream (for testing)
func (s *MCPServer) SetStdout(w io.Writer) {
	s.stdout = w
}

// SetAuditWriter enables audit records for tool calls. A nil writer turns
// auditing off.
func (s *MCPServer) SetAuditWriter(w io.Writer) {
	if w == nil {
		s.audit = nil
		return
	}
	s.audit = newAuditLog(w)
}

// Start processes messages until stdin is exhausted or ctx is cancelled.
// Expired cache entries are swept in the background while it runs.
func (s *MCPServer) Start(ctx context.Context) error {
	s.logger.Info("MCP server starting", "version", s.version)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	if every := s.sweepInterval(); every > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.sweepLoop(ctx, every)
		}()
	}

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("MCP server shutting down", "reason", err.Error())
			return nil
		}

		msg, err := s.readMessage()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				s.logger.Info("MCP server shutting down (EOF)")
				return nil
			}
			var perr errParse
			if stderrors.As(err, &perr) {
				s.logger.Warn("Dropping malformed message", "error", err.Error())
				if werr := s.writeMessage(NewErrorMessage(nil, ParseError, err.Error(), nil)); werr != nil {
					s.logger.Error("Error writing response", "error", werr.Error())
				}
				continue
			}
			var big errTooLarge
			if stderrors.As(err, &big) {
				s.logger.Warn("Rejecting oversized message", "bytes", big.size)
				if werr := s.writeMessage(NewErrorMessage(nil, InvalidRequest, err.Error(), nil)); werr != nil {
					s.logger.Error("Error writing response", "error", werr.Error())
				}
				continue
			}
			s.logger.Error("Error reading message", "error", err.Error())
			return err
		}

		if response := s.handleMessage(ctx, msg); response != nil {
			if err := s.writeMessage(response); err != nil {
				s.logger.Error("Error writing response", "error", err.Error())
			}
		}
	}
}

func (s *MCPServer) sweepInterval() time.Duration {
	if s.sweepEvery > 0 {
		return s.sweepEvery
	}
	if s.engine == nil {
		return 0
	}
	return time.Duration(s.engine.Config().Cache.SweepIntervalSeconds) * time.Second
}

func (s *MCPServer) sweepLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.engine.SweepCaches(); n > 0 {
				s.logger.Debug("Swept expired cache entries", "removed", n)
			}
		}
	}
}
