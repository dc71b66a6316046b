package crawler

import (
	"sync/atomic"

	"github.com/Serbz/TorScraper-SC/internal/model"
)

// Signal is a level-triggered boolean flag shared between the external
// caller and the pipeline. Unlike context cancellation it can be cleared,
// which is what lets pause behave as a toggle.
type Signal struct {
	v atomic.Bool
}

// Set raises the signal.
func (s *Signal) Set() {
	s.v.Store(true)
}

// Clear lowers the signal.
func (s *Signal) Clear() {
	s.v.Store(false)
}

// IsSet reports whether the signal is raised.
func (s *Signal) IsSet() bool {
	return s.v.Load()
}

// Controls bundles the shared state an external caller uses to steer and
// observe a running crawl. The caller owns the Controls and may read the
// task table or flip the signals at any time.
type Controls struct {
	// Stop requests a shutdown. Once set, workers discard in-flight
	// results instead of persisting them and the producer stops
	// recomputing frontiers.
	Stop *Signal

	// Pause idles workers in place without losing queue state. Clearing
	// it resumes the crawl.
	Pause *Signal

	// Tasks is the live per-fetch telemetry table.
	Tasks *model.TaskTable
}

// NewControls creates a Controls with lowered signals and an empty task
// table.
func NewControls() *Controls {
	return &Controls{
		Stop:  &Signal{},
		Pause: &Signal{},
		Tasks: model.NewTaskTable(),
	}
}
