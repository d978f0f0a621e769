package engine

import (
	"sort"

	"github.com/jvillegas/metasweep/internal/utils"
)

// EventKind enumerates the batch event stream states.
type EventKind int

const (
	EventStarted EventKind = iota
	EventProcessing
	EventSuccess
	EventFailure
	EventFinished
)

// Event is one element of the ordered batch event stream.
type Event struct {
	Kind EventKind
	Path string // Processing/Success/Failure

	Total     int // Started, Processing
	Index     int // Processing, 1-based
	Successes int // Finished
	Failures  int // Finished

	Err error // Failure
}

// BatchSanitize sanitizes the filtered paths sequentially in sorted order
// and emits the event stream on the returned channel: one Started, then
// per file a Processing followed by Success or Failure, then one Finished,
// after which the channel closes.
func BatchSanitize(paths []string, filter func(string) bool, opts Options) <-chan Event {
	selected := make([]string, 0, len(paths))
	for _, p := range paths {
		if filter == nil || filter(p) {
			selected = append(selected, p)
		}
	}
	sort.Strings(selected)

	events := make(chan Event)
	go func() {
		defer close(events)
		events <- Event{Kind: EventStarted, Total: len(selected)}

		successes, failures := 0, 0
		for i, p := range selected {
			events <- Event{Kind: EventProcessing, Path: p, Index: i + 1, Total: len(selected)}
			if err := Sanitize(p, opts); err != nil {
				failures++
				utils.Log.WithError(err).WithField("path", p).Warn("Batch sanitize failed")
				events <- Event{Kind: EventFailure, Path: p, Err: err}
				continue
			}
			successes++
			events <- Event{Kind: EventSuccess, Path: p}
		}

		events <- Event{Kind: EventFinished, Successes: successes, Failures: failures}
	}()
	return events
}
