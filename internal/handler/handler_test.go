package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arturoeanton/go-study-assistant/internal/adapter/generate"
	"github.com/arturoeanton/go-study-assistant/internal/adapter/store"
	"github.com/arturoeanton/go-study-assistant/internal/chunker"
	"github.com/arturoeanton/go-study-assistant/internal/domain"
	"github.com/arturoeanton/go-study-assistant/internal/port"
	"github.com/arturoeanton/go-study-assistant/internal/service"
	"github.com/gofiber/fiber/v3"
)

type fakeAI struct {
	response  string
	tokens    []string
	streamErr error
}

func (f *fakeAI) ModelName() string { return "fake" }

func (f *fakeAI) Chat(context.Context, string, string, []string) (string, error) {
	return f.response, nil
}

func (f *fakeAI) ChatStream(context.Context, string, string, []string) (<-chan port.StreamChunk, error) {
	ch := make(chan port.StreamChunk, len(f.tokens)+1)
	for _, t := range f.tokens {
		ch <- port.StreamChunk{Text: t}
	}
	if f.streamErr != nil {
		ch <- port.StreamChunk{Err: f.streamErr}
	}
	close(ch)
	return ch, nil
}

type fakeExtractor struct{ text string }

func (f fakeExtractor) Extract(context.Context, io.ReaderAt, int64) (string, error) {
	if f.text == "" {
		return "", errors.New("malformed pdf")
	}
	return f.text, nil
}

const notes = `Photosynthesis converts light energy into chemical energy.

Mitochondria release energy through cellular respiration.`

type testEnv struct {
	app     *fiber.App
	store   *store.MemoryStore
	tracker *JobTracker
}

func newTestEnv(t *testing.T, ai *fakeAI, ex fakeExtractor) *testEnv {
	t.Helper()
	s := store.NewMemoryStore()
	c, err := chunker.New(8, 2)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	docs := service.NewDocumentService(s, ex, c)
	engine := port.NewGeneratorEngine(
		generate.NewFlashcardGenerator(ai),
		generate.NewQuizGenerator(ai),
		generate.NewSummaryGenerator(ai),
	)
	study := service.NewStudyService(s, ai, engine, 3)
	tracker := NewJobTracker()

	app := fiber.New()
	api := app.Group("/api/v1")
	NewDocumentHandler(docs, tracker, 1<<20).Register(api)
	NewAIHandler(study).Register(api)
	NewJobsHandler(tracker).Register(api)
	NewActivityHandler(s).Register(api)
	return &testEnv{app: app, store: s, tracker: tracker}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

// waitJob polls until the job leaves the running state.
func (e *testEnv) waitJob(t *testing.T, jobID string) *JobStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		job, ok := e.tracker.GetJob(jobID)
		if !ok {
			t.Fatalf("job %s not tracked", jobID)
		}
		if job.done() {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s still %s", jobID, job.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// createReady uploads text and waits for processing to finish.
func (e *testEnv) createReady(t *testing.T) string {
	t.Helper()
	resp, out := e.do(t, "POST", "/api/v1/documents", map[string]string{"title": "Biology", "text": notes})
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("create status = %d: %v", resp.StatusCode, out)
	}
	job := e.waitJob(t, out["job_id"].(string))
	if job.Status != JobComplete {
		t.Fatalf("job failed: %+v", job)
	}
	return out["document"].(map[string]any)["id"].(string)
}

func TestDocumentHandler_CreateAndRead(t *testing.T) {
	env := newTestEnv(t, &fakeAI{}, fakeExtractor{})
	id := env.createReady(t)

	resp, doc := env.do(t, "GET", "/api/v1/documents/"+id, nil)
	if resp.StatusCode != fiber.StatusOK || doc["status"] != domain.DocumentStatusReady {
		t.Fatalf("get document = %d %v", resp.StatusCode, doc)
	}
	if _, leaked := doc["extracted_text"]; leaked {
		t.Error("extracted text should not be serialized")
	}

	_, list := env.do(t, "GET", "/api/v1/documents", nil)
	if list["count"].(float64) != 1 {
		t.Errorf("list = %v", list)
	}

	_, chunks := env.do(t, "GET", "/api/v1/documents/"+id+"/chunks", nil)
	if chunks["count"].(float64) < 2 {
		t.Errorf("expected the notes to span several chunks, got %v", chunks["count"])
	}
}

func TestDocumentHandler_Validation(t *testing.T) {
	env := newTestEnv(t, &fakeAI{}, fakeExtractor{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing text", "POST", "/api/v1/documents", map[string]string{"title": "t"}, fiber.StatusBadRequest},
		{"missing title", "POST", "/api/v1/documents", map[string]string{"text": "t"}, fiber.StatusBadRequest},
		{"unknown document", "GET", "/api/v1/documents/nope", nil, fiber.StatusNotFound},
		{"unknown chunks", "GET", "/api/v1/documents/nope/chunks", nil, fiber.StatusNotFound},
		{"delete unknown", "DELETE", "/api/v1/documents/nope", nil, fiber.StatusNotFound},
		{"upload without file", "POST", "/api/v1/documents/upload", nil, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := env.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d (%v)", resp.StatusCode, tt.want, out)
			}
		})
	}
}

func multipartPDF(t *testing.T, filename string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("title", "Uploaded notes")
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write([]byte("%PDF-1.4 fake"))
	_ = mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDocumentHandler_Upload(t *testing.T) {
	env := newTestEnv(t, &fakeAI{}, fakeExtractor{text: notes})

	resp, out := env.send(t, multipartPDF(t, "notes.pdf"))
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("upload status = %d: %v", resp.StatusCode, out)
	}
	doc := out["document"].(map[string]any)
	if doc["title"] != "Uploaded notes" || doc["file_name"] != "notes.pdf" {
		t.Errorf("unexpected document %v", doc)
	}
	if job := env.waitJob(t, out["job_id"].(string)); job.Status != JobComplete || job.Progress != job.Total {
		t.Errorf("job = %+v", job)
	}

	resp, _ = env.send(t, multipartPDF(t, "notes.docx"))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("non-PDF upload status = %d", resp.StatusCode)
	}
}

func TestDocumentHandler_UploadExtractionFails(t *testing.T) {
	env := newTestEnv(t, &fakeAI{}, fakeExtractor{})

	_, out := env.send(t, multipartPDF(t, "broken.pdf"))
	job := env.waitJob(t, out["job_id"].(string))
	if job.Status != JobError || job.Error == "" {
		t.Errorf("job = %+v, want error", job)
	}

	id := out["document"].(map[string]any)["id"].(string)
	_, doc := env.do(t, "GET", "/api/v1/documents/"+id, nil)
	if doc["status"] != domain.DocumentStatusFailed {
		t.Errorf("document status = %v", doc["status"])
	}

	resp, _ := env.do(t, "POST", "/api/v1/ai/chat", map[string]string{"document_id": id, "question": "energy?"})
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("chat on failed document = %d, want 409", resp.StatusCode)
	}
}

func TestDocumentHandler_Search(t *testing.T) {
	env := newTestEnv(t, &fakeAI{}, fakeExtractor{})
	id := env.createReady(t)

	resp, out := env.do(t, "POST", "/api/v1/documents/"+id+"/search", map[string]any{"query": "mitochondria respiration"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("search status = %d: %v", resp.StatusCode, out)
	}
	results := out["results"].([]any)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	top := results[0].(map[string]any)
	if !strings.Contains(top["content"].(string), "Mitochondria") || top["score"].(float64) <= 0 {
		t.Errorf("unexpected top result %v", top)
	}

	resp, _ = env.do(t, "POST", "/api/v1/documents/"+id+"/search", map[string]any{"query": " "})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("blank query status = %d", resp.StatusCode)
	}

	for _, limit := range []string{"abc", "-2"} {
		resp, out = env.do(t, "POST", "/api/v1/documents/"+id+"/search?limit="+limit, map[string]any{"query": "mitochondria"})
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("limit=%s status = %d: %v", limit, resp.StatusCode, out)
		}
	}
	resp, out = env.do(t, "POST", "/api/v1/documents/"+id+"/search?limit=1", map[string]any{"query": "mitochondria respiration"})
	if resp.StatusCode != fiber.StatusOK || out["count"].(float64) != 1 {
		t.Errorf("limit=1 search = %d %v", resp.StatusCode, out)
	}
}

func TestAIHandler_ChatAndHistory(t *testing.T) {
	env := newTestEnv(t, &fakeAI{response: "Cellular respiration."}, fakeExtractor{})
	id := env.createReady(t)

	resp, out := env.do(t, "POST", "/api/v1/ai/chat", map[string]string{"document_id": id, "question": "How do mitochondria release energy?"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("chat status = %d: %v", resp.StatusCode, out)
	}
	if out["answer"] != "Cellular respiration." || len(out["relevant_chunks"].([]any)) == 0 {
		t.Errorf("unexpected chat response %v", out)
	}

	_, history := env.do(t, "GET", "/api/v1/ai/chat-history/"+id, nil)
	if history["count"].(float64) != 2 {
		t.Errorf("history = %v", history)
	}

	resp, _ = env.do(t, "POST", "/api/v1/ai/chat", map[string]string{"document_id": id})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("missing question status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, "GET", "/api/v1/ai/chat-history/nope", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("history of unknown document = %d", resp.StatusCode)
	}
}

func TestAIHandler_ChatStream(t *testing.T) {
	env := newTestEnv(t, &fakeAI{tokens: []string{"Light ", "energy"}}, fakeExtractor{})
	id := env.createReady(t)

	data, _ := json.Marshal(map[string]string{"document_id": id, "question": "photosynthesis"})
	req := httptest.NewRequest("POST", "/api/v1/ai/chat/stream", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{"event: chunks", `"content":"Light "`, `"content":"energy"`, "event: done"} {
		if !strings.Contains(text, want) {
			t.Errorf("stream missing %q:\n%s", want, text)
		}
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type = %q", ct)
	}
}

func TestAIHandler_ChatStreamInterrupted(t *testing.T) {
	ai := &fakeAI{tokens: []string{"Photosynthesis is"}, streamErr: errors.New("unexpected EOF")}
	env := newTestEnv(t, ai, fakeExtractor{})
	id := env.createReady(t)

	data, _ := json.Marshal(map[string]string{"document_id": id, "question": "photosynthesis"})
	req := httptest.NewRequest("POST", "/api/v1/ai/chat/stream", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	if !strings.Contains(text, `"content":"Photosynthesis is"`) || !strings.Contains(text, "event: error") {
		t.Errorf("expected partial token then error event:\n%s", text)
	}
	if strings.Contains(text, "event: done") {
		t.Errorf("interrupted stream must not report done:\n%s", text)
	}

	_, history := env.do(t, "GET", "/api/v1/ai/chat-history/"+id, nil)
	if history["count"].(float64) != 0 {
		t.Errorf("interrupted answer recorded: %v", history)
	}
}

func TestAIHandler_Generate(t *testing.T) {
	ai := &fakeAI{response: "Q: What converts light?\nA: Photosynthesis.\nD: easy"}
	env := newTestEnv(t, ai, fakeExtractor{})
	id := env.createReady(t)

	resp, out := env.do(t, "POST", "/api/v1/ai/generate-flashcards", map[string]any{"document_id": id, "count": 5})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("generate status = %d: %v", resp.StatusCode, out)
	}
	cards := out["payload"].([]any)
	if out["kind"] != "flashcards" || len(cards) != 1 || out["items"].(float64) != 1 {
		t.Errorf("unexpected generation %v", out)
	}

	resp, _ = env.do(t, "POST", "/api/v1/ai/generate/mindmap", map[string]any{"document_id": id})
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("unknown generator status = %d", resp.StatusCode)
	}

	_, gens := env.do(t, "GET", "/api/v1/ai/generations/"+id, nil)
	if gens["count"].(float64) != 1 {
		t.Errorf("generations = %v", gens)
	}

	_, list := env.do(t, "GET", "/api/v1/ai/generators", nil)
	if len(list["generators"].(map[string]any)) != 3 {
		t.Errorf("generators = %v", list)
	}
}

func TestAIHandler_ExplainConcept(t *testing.T) {
	env := newTestEnv(t, &fakeAI{response: "It turns light into sugar."}, fakeExtractor{})
	id := env.createReady(t)

	resp, out := env.do(t, "POST", "/api/v1/ai/explain-concept", map[string]string{"document_id": id, "concept": "photosynthesis"})
	if resp.StatusCode != fiber.StatusOK || out["explanation"] != "It turns light into sugar." {
		t.Errorf("explain = %d %v", resp.StatusCode, out)
	}
}

func TestActivityHandler_List(t *testing.T) {
	env := newTestEnv(t, &fakeAI{}, fakeExtractor{})
	for i := range 3 {
		_ = env.store.WriteAudit(domain.AuditActionHTTPRequest, "api", fmt.Sprintf("/p%d", i), "{}", "", "")
	}
	_ = env.store.WriteAudit(domain.AuditActionChat, "api", "/api/v1/ai/chat", "{}", "", "")

	_, out := env.do(t, "GET", "/api/v1/activity?limit=2", nil)
	if out["count"].(float64) != 2 {
		t.Errorf("limited activity = %v", out)
	}
	_, out = env.do(t, "GET", "/api/v1/activity?action=chat", nil)
	if out["count"].(float64) != 1 {
		t.Errorf("filtered activity = %v", out)
	}
}

func TestJobsHandler(t *testing.T) {
	env := newTestEnv(t, &fakeAI{}, fakeExtractor{})

	resp, _ := env.do(t, "GET", "/api/v1/jobs/nope", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("unknown job status = %d", resp.StatusCode)
	}

	env.tracker.CreateJob("j1", "doc", 3)
	env.tracker.Advance("j1", service.StageChunking, 2)
	_, out := env.do(t, "GET", "/api/v1/jobs/j1", nil)
	if out["stage"] != service.StageChunking || out["status"] != JobRunning {
		t.Errorf("job = %v", out)
	}

	env.tracker.Finish("j1", nil)
	req := httptest.NewRequest("GET", "/api/v1/jobs/j1/stream", nil)
	resp, err := env.app.Test(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "event: complete\n") {
		t.Errorf("finished job stream = %q", body)
	}
}

func TestJobTracker_Subscribe(t *testing.T) {
	tracker := NewJobTracker()
	tracker.CreateJob("j", "doc", 3)
	ch, current, ok := tracker.Subscribe("j")
	if !ok || current.Status != JobRunning {
		t.Fatalf("Subscribe = %+v, %v", current, ok)
	}

	tracker.Advance("j", service.StageExtracting, 1)
	tracker.Finish("j", errors.New("boom"))

	first := <-ch
	if first.Stage != service.StageExtracting || first.Progress != 1 {
		t.Errorf("first update = %+v", first)
	}
	last := <-ch
	if last.Status != JobError || last.Error != "boom" || last.CompletedAt.IsZero() {
		t.Errorf("last update = %+v", last)
	}
	tracker.Unsubscribe("j", ch)
	tracker.Advance("j", "late", 2) // must not panic on the closed channel

	if _, _, ok := tracker.Subscribe("missing"); ok {
		t.Error("Subscribe on unknown job should fail")
	}
}

func TestJobTracker_SubscribeNeverMissesFinish(t *testing.T) {
	for i := 0; i < 200; i++ {
		tracker := NewJobTracker()
		tracker.CreateJob("j", "doc", 3)

		finished := make(chan struct{})
		go func() {
			tracker.Finish("j", nil)
			close(finished)
		}()

		ch, current, ok := tracker.Subscribe("j")
		if !ok {
			t.Fatal("job not found")
		}
		if !current.done() {
			select {
			case update := <-ch:
				if !update.done() {
					t.Fatalf("update = %+v, want final status", update)
				}
			case <-time.After(time.Second):
				t.Fatal("finish was neither in the snapshot nor delivered")
			}
		}
		<-finished
		tracker.Unsubscribe("j", ch)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{port.ErrDocumentNotFound, fiber.StatusNotFound},
		{fmt.Errorf("run generator x: %w", port.ErrGeneratorNotFound), fiber.StatusNotFound},
		{fmt.Errorf("%w: status processing", port.ErrDocumentNotReady), fiber.StatusConflict},
		{port.ErrEmptyQuery, fiber.StatusBadRequest},
		{errors.New("db down"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
