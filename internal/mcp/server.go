package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/arturoeanton/go-study-assistant/internal/chunker"
	"github.com/arturoeanton/go-study-assistant/internal/domain"
	"github.com/arturoeanton/go-study-assistant/internal/middleware"
	"github.com/arturoeanton/go-study-assistant/internal/retrieval"
	"github.com/arturoeanton/go-study-assistant/internal/service"
)

// Server implements the Model Context Protocol (MCP) server.
// It exposes chunking, search and explanation tools to external AI agents.
type Server struct {
	documents *service.DocumentService
	study     *service.StudyService
	audit     middleware.AuditWriter
	port      string
}

// NewServer creates a new MCP server. audit may be nil.
func NewServer(documents *service.DocumentService, study *service.StudyService, audit middleware.AuditWriter, port string) *Server {
	return &Server{
		documents: documents,
		study:     study,
		audit:     audit,
		port:      port,
	}
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)
	mux.HandleFunc("/mcp/sse", s.handleSSE)
	return mux
}

// Start begins the MCP server on the configured port.
func (s *Server) Start() error {
	slog.Info("MCP server starting", "port", s.port)
	return http.ListenAndServe(":"+s.port, s.Handler())
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error")
		return
	}

	var result any
	var err error

	switch req.Method {
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, err = s.callTool(r.Context(), req.Params, r.RemoteAddr, r.UserAgent())
	case "initialize":
		result = map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]string{
				"name":    "study-assistant",
				"version": "1.0.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]bool{"listChanged": false},
			},
		}
	default:
		writeError(w, req.ID, -32601, "method not found")
		return
	}

	if err != nil {
		writeError(w, req.ID, -32603, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: /mcp\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	<-r.Context().Done()
}

func (s *Server) listTools() map[string]any {
	tools := []Tool{
		{
			Name:        "chunk_text",
			Description: "Split text into overlapping word chunks that respect paragraphs",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"text": {"type": "string", "description": "Text to split"},
					"chunk_size": {"type": "integer", "description": "Maximum words per chunk (default 500)"},
					"overlap": {"type": "integer", "description": "Words shared between neighbouring chunks (default 50)"}
				},
				"required": ["text"]
			}`),
		},
		{
			Name:        "search_document",
			Description: "Rank the chunks of a document by keyword relevance to a query",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"document_id": {"type": "string", "description": "Document ID"},
					"query": {"type": "string", "description": "Search query"},
					"limit": {"type": "integer", "description": "Maximum chunks returned (default 3)"}
				},
				"required": ["document_id", "query"]
			}`),
		},
		{
			Name:        "explain_concept",
			Description: "Explain a concept using a document as context",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"document_id": {"type": "string", "description": "Document ID"},
					"concept": {"type": "string", "description": "Concept to explain"}
				},
				"required": ["document_id", "concept"]
			}`),
		},
		{
			Name:        "list_generators",
			Description: "List available study material generators",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
	}
	return map[string]any{"tools": tools}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage, ip, userAgent string) (any, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	s.record(req.Name, ip, userAgent)

	switch req.Name {
	case "chunk_text":
		args := struct {
			Text      string `json:"text"`
			ChunkSize int    `json:"chunk_size"`
			Overlap   *int   `json:"overlap"`
		}{ChunkSize: chunker.DefaultChunkSize}
		if err := decodeArgs(req.Arguments, &args); err != nil {
			return nil, err
		}
		overlap := chunker.DefaultOverlap
		if args.Overlap != nil {
			overlap = *args.Overlap
		}
		if args.ChunkSize <= 0 {
			args.ChunkSize = chunker.DefaultChunkSize
		}
		chunks, err := chunker.Split(args.Text, args.ChunkSize, overlap)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": fmt.Sprintf("Split into %d chunks.", len(chunks))},
			},
			"chunks": chunks,
		}, nil

	case "search_document":
		var args struct {
			DocumentID string `json:"document_id"`
			Query      string `json:"query"`
			Limit      int    `json:"limit"`
		}
		if err := decodeArgs(req.Arguments, &args); err != nil {
			return nil, err
		}
		if args.Limit <= 0 {
			args.Limit = retrieval.DefaultMaxChunks
		}
		results, err := s.documents.Search(ctx, args.DocumentID, args.Query, args.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": formatResults(results)},
			},
			"results": results,
		}, nil

	case "explain_concept":
		var args struct {
			DocumentID string `json:"document_id"`
			Concept    string `json:"concept"`
		}
		if err := decodeArgs(req.Arguments, &args); err != nil {
			return nil, err
		}
		exp, err := s.study.ExplainConcept(ctx, args.DocumentID, args.Concept)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": exp.Explanation},
			},
		}, nil

	case "list_generators":
		names := s.study.GeneratorNames()
		return map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "Available generators: " + strings.Join(names, ", ")},
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", req.Name)
	}
}

func (s *Server) record(tool, ip, userAgent string) {
	if s.audit == nil {
		return
	}
	go func() {
		if err := s.audit.WriteAudit(domain.AuditActionMCPCall, "mcp", tool, "{}", ip, userAgent); err != nil {
			slog.Error("failed to write audit log", "error", err)
		}
	}()
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func formatResults(results []domain.ScoredChunk) string {
	if len(results) == 0 {
		return "No relevant chunks found."
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "[Chunk %d] score %.3f\n%s\n\n", r.ChunkIndex, r.Score, r.Content)
	}
	return strings.TrimSpace(b.String())
}

func writeResult(w http.ResponseWriter, id any, result any) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id any, code int, message string) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
