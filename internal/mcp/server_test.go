package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arturoeanton/go-study-assistant/internal/adapter/generate"
	"github.com/arturoeanton/go-study-assistant/internal/adapter/store"
	"github.com/arturoeanton/go-study-assistant/internal/chunker"
	"github.com/arturoeanton/go-study-assistant/internal/port"
	"github.com/arturoeanton/go-study-assistant/internal/service"
)

type fakeAI struct{}

func (fakeAI) ModelName() string { return "fake" }
func (fakeAI) Chat(context.Context, string, string, []string) (string, error) {
	return "an explanation", nil
}
func (fakeAI) ChatStream(context.Context, string, string, []string) (<-chan port.StreamChunk, error) {
	ch := make(chan port.StreamChunk)
	close(ch)
	return ch, nil
}

type noExtractor struct{}

func (noExtractor) Extract(context.Context, io.ReaderAt, int64) (string, error) { return "", nil }

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	docs := service.NewDocumentService(s, noExtractor{}, chunker.Default())
	engine := port.NewGeneratorEngine(generate.NewSummaryGenerator(fakeAI{}), generate.NewQuizGenerator(fakeAI{}))
	study := service.NewStudyService(s, fakeAI{}, engine, 3)

	doc, err := docs.Create(ctx, "Notes", "", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := docs.ProcessText(ctx, doc.ID, "Enzymes speed up reactions.\n\nCells divide by mitosis.", nil); err != nil {
		t.Fatalf("ProcessText: %v", err)
	}

	srv := httptest.NewServer(NewServer(docs, study, s, "0").Handler())
	t.Cleanup(srv.Close)
	return srv, doc.ID
}

func rpc(t *testing.T, srv *httptest.Server, method string, params any) JSONRPCResponse {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("POST /mcp: %v", err)
	}
	defer resp.Body.Close()

	var out JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func resultText(t *testing.T, r JSONRPCResponse) string {
	t.Helper()
	if r.Error != nil {
		t.Fatalf("rpc error: %+v", r.Error)
	}
	content := r.Result.(map[string]any)["content"].([]any)
	return content[0].(map[string]any)["text"].(string)
}

func TestServer_ToolsList(t *testing.T) {
	srv, _ := newTestServer(t)
	r := rpc(t, srv, "tools/list", nil)
	tools := r.Result.(map[string]any)["tools"].([]any)

	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	if strings.Join(names, ",") != "chunk_text,search_document,explain_concept,list_generators" {
		t.Errorf("tools = %v", names)
	}
}

func TestServer_ChunkText(t *testing.T) {
	srv, _ := newTestServer(t)

	r := rpc(t, srv, "tools/call", map[string]any{
		"name":      "chunk_text",
		"arguments": map[string]any{"text": "one two three four five six", "chunk_size": 4, "overlap": 1},
	})
	if got := resultText(t, r); got != "Split into 2 chunks." {
		t.Errorf("text = %q", got)
	}

	r = rpc(t, srv, "tools/call", map[string]any{
		"name":      "chunk_text",
		"arguments": map[string]any{"text": "a b", "chunk_size": 2, "overlap": 2},
	})
	if r.Error == nil || !strings.Contains(r.Error.Message, "overlap") {
		t.Errorf("invalid overlap should fail, got %+v", r)
	}
}

func TestServer_SearchDocument(t *testing.T) {
	srv, id := newTestServer(t)

	r := rpc(t, srv, "tools/call", map[string]any{
		"name":      "search_document",
		"arguments": map[string]any{"document_id": id, "query": "mitosis"},
	})
	if text := resultText(t, r); !strings.Contains(text, "mitosis") {
		t.Errorf("text = %q", text)
	}

	r = rpc(t, srv, "tools/call", map[string]any{
		"name":      "search_document",
		"arguments": map[string]any{"document_id": "missing", "query": "mitosis"},
	})
	if r.Error == nil || r.Error.Code != -32603 {
		t.Errorf("missing document should be an internal error, got %+v", r)
	}
}

func TestServer_ExplainAndGenerators(t *testing.T) {
	srv, id := newTestServer(t)

	r := rpc(t, srv, "tools/call", map[string]any{
		"name":      "explain_concept",
		"arguments": map[string]any{"document_id": id, "concept": "enzymes"},
	})
	if got := resultText(t, r); got != "an explanation" {
		t.Errorf("explanation = %q", got)
	}

	r = rpc(t, srv, "tools/call", map[string]any{"name": "list_generators"})
	if got := resultText(t, r); got != "Available generators: quiz, summary" {
		t.Errorf("generators = %q", got)
	}
}

func TestServer_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	if r := rpc(t, srv, "resources/list", nil); r.Error == nil || r.Error.Code != -32601 {
		t.Errorf("unknown method = %+v", r)
	}
	if r := rpc(t, srv, "tools/call", map[string]any{"name": "nope"}); r.Error == nil {
		t.Error("unknown tool should fail")
	}

	resp, err := http.Get(srv.URL + "/mcp")
	if err != nil {
		t.Fatalf("GET /mcp: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", resp.StatusCode)
	}
}
