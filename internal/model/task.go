package model

import (
	"sync"
	"time"
)

// DisplayGracePeriod is how long a finished task stays visible in the
// telemetry table before Prune removes it. External viewers poll the table
// on their own schedule; the grace period keeps short-lived tasks from
// vanishing between polls.
const DisplayGracePeriod = 2 * time.Second

// CrawlTask is the live telemetry for one in-flight (or recently finished)
// fetch. Tasks are ephemeral: they exist only in the TaskTable and are
// never persisted.
type CrawlTask struct {
	// TaskID uniquely identifies this fetch attempt.
	TaskID string

	// WorkerID identifies the worker executing the fetch.
	WorkerID int

	// URL is the URL being fetched.
	URL string

	// Site is the host portion of URL, precomputed for display.
	Site string

	// Bytes is the number of response bytes read so far.
	Bytes int64

	// Title is the parsed page title, set once parsing resolves it.
	Title string

	// FinishedAt is the time the fetch terminated (success, failure, or
	// cancellation). Zero while the fetch is still running.
	FinishedAt time.Time
}

// Finished reports whether the task has terminated.
func (t CrawlTask) Finished() bool {
	return !t.FinishedAt.IsZero()
}

// TaskTable is the shared mutable map of live crawl tasks. It is
// constructed by the external caller (GUI or CLI) and handed to the core;
// the core only registers, mutates, and finishes entries. One mutex guards
// the whole table; every mutation holds it for its full duration.
type TaskTable struct {
	mu    sync.Mutex
	tasks map[string]*CrawlTask
}

// NewTaskTable creates an empty task table.
func NewTaskTable() *TaskTable {
	return &TaskTable{tasks: make(map[string]*CrawlTask)}
}

// Register inserts a new running task. An existing entry with the same id
// is overwritten; task ids are unique per fetch attempt so this only
// matters for misuse.
func (tt *TaskTable) Register(taskID string, workerID int, url, site string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.tasks[taskID] = &CrawlTask{
		TaskID:   taskID,
		WorkerID: workerID,
		URL:      url,
		Site:     site,
	}
}

// SetBytes records the byte count fetched for a task.
func (tt *TaskTable) SetBytes(taskID string, n int64) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if t, ok := tt.tasks[taskID]; ok {
		t.Bytes = n
	}
}

// SetTitle records the resolved page title for a task.
func (tt *TaskTable) SetTitle(taskID, title string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if t, ok := tt.tasks[taskID]; ok {
		t.Title = title
	}
}

// Finish marks a task as terminated. It is idempotent and must be called
// on every exit path of a fetch, including cancellation.
func (tt *TaskTable) Finish(taskID string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	if t, ok := tt.tasks[taskID]; ok && t.FinishedAt.IsZero() {
		t.FinishedAt = time.Now()
	}
}

// Snapshot returns a copy of all current tasks, for display.
func (tt *TaskTable) Snapshot() []CrawlTask {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	out := make([]CrawlTask, 0, len(tt.tasks))
	for _, t := range tt.tasks {
		out = append(out, *t)
	}
	return out
}

// ActiveCount returns the number of tasks that have not finished.
func (tt *TaskTable) ActiveCount() int {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	n := 0
	for _, t := range tt.tasks {
		if t.FinishedAt.IsZero() {
			n++
		}
	}
	return n
}

// Prune removes tasks that finished more than grace ago and returns how
// many were removed.
func (tt *TaskTable) Prune(grace time.Duration) int {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, t := range tt.tasks {
		if !t.FinishedAt.IsZero() && now.Sub(t.FinishedAt) > grace {
			delete(tt.tasks, id)
			removed++
		}
	}
	return removed
}
