package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
)

// Job states.
const (
	JobRunning  = "running"
	JobComplete = "complete"
	JobError    = "error"
)

// JobStatus represents the current state of a document processing job.
type JobStatus struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	Total       int       `json:"total"`
	Stage       string    `json:"stage"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

func (j JobStatus) done() bool { return j.Status == JobComplete || j.Status == JobError }

// JobTracker manages processing jobs in memory.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*JobStatus
	subs map[string][]chan JobStatus // subscribers per job
}

// NewJobTracker creates a new job tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{
		jobs: make(map[string]*JobStatus),
		subs: make(map[string][]chan JobStatus),
	}
}

// CreateJob creates a new job entry.
func (t *JobTracker) CreateJob(id, documentID string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &JobStatus{
		ID:         id,
		DocumentID: documentID,
		Status:     JobRunning,
		Total:      total,
		StartedAt:  time.Now(),
	}
}

// Advance records that the job entered stage.
func (t *JobTracker) Advance(id, stage string, progress int) {
	t.update(id, func(job *JobStatus) {
		job.Stage = stage
		job.Progress = progress
	})
}

// Finish marks the job complete, or failed when err is non-nil.
func (t *JobTracker) Finish(id string, err error) {
	t.update(id, func(job *JobStatus) {
		if err != nil {
			job.Status = JobError
			job.Error = err.Error()
		} else {
			job.Status = JobComplete
			job.Progress = job.Total
		}
		job.CompletedAt = time.Now()
	})
}

// update applies fn and notifies subscribers. Sends happen under the lock so
// Unsubscribe cannot close a channel mid-send and Subscribe never sees a
// state its channel will not be told about.
func (t *JobTracker) update(id string, fn func(*JobStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return
	}
	fn(job)
	snapshot := *job
	for _, ch := range t.subs[id] {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// GetJob returns a job status.
func (t *JobTracker) GetJob(id string) (*JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// Subscribe registers a channel for job updates and returns it with the
// status as of registration. Every later change reaches the channel.
// Unknown jobs return ok == false and no channel.
func (t *JobTracker) Subscribe(id string) (ch chan JobStatus, current JobStatus, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return nil, JobStatus{}, false
	}
	ch = make(chan JobStatus, 10)
	t.subs[id] = append(t.subs[id], ch)
	return ch, *job, true
}

// Unsubscribe removes a channel from subscribers.
func (t *JobTracker) Unsubscribe(id string, ch chan JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[id]
	for i, s := range subs {
		if s == ch {
			t.subs[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(t.subs[id]) == 0 {
		delete(t.subs, id)
	}
	close(ch)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	tracker *JobTracker
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(tracker *JobTracker) *JobsHandler {
	return &JobsHandler{tracker: tracker}
}

// Register sets up job routes.
func (h *JobsHandler) Register(router fiber.Router) {
	jobs := router.Group("/jobs")
	jobs.Get("/:id", h.GetStatus)
	jobs.Get("/:id/stream", h.StreamSSE)
}

// GetStatus returns the current job status.
func (h *JobsHandler) GetStatus(c fiber.Ctx) error {
	job, ok := h.tracker.GetJob(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	return c.JSON(job)
}

// StreamSSE streams job updates via Server-Sent Events.
func (h *JobsHandler) StreamSSE(c fiber.Ctx) error {
	id := c.Params("id")

	ch, job, ok := h.tracker.Subscribe(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}

	setSSEHeaders(c)

	// Already finished: send the final status only.
	if job.done() {
		h.tracker.Unsubscribe(id, ch)
		data, _ := json.Marshal(job)
		return c.SendString(fmt.Sprintf("event: %s\ndata: %s\n\n", job.Status, data))
	}

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.tracker.Unsubscribe(id, ch)

		data, _ := json.Marshal(job)
		fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
		if err := w.Flush(); err != nil {
			return
		}

		timeout := time.After(5 * time.Minute)
		for {
			select {
			case update := <-ch:
				data, _ := json.Marshal(update)
				eventType := "progress"
				if update.done() {
					eventType = update.Status
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
				if err := w.Flush(); err != nil || update.done() {
					return
				}
			case <-timeout:
				slog.Warn("SSE timeout", "job_id", id)
				return
			}
		}
	})
}

func setSSEHeaders(c fiber.Ctx) {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
}
