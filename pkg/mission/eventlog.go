package mission

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Event is one mission event for later reporting.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"event"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Detail    string    `json:"detail,omitempty"`
}

// EventLog is an append-only mission journal persisted as a JSON array.
// Events are never mutated in place.
type EventLog struct {
	mu     sync.Mutex
	path   string
	events []Event
}

// OpenEventLog loads the journal at path, creating an empty one if the
// file does not exist.
func OpenEventLog(path string) (*EventLog, error) {
	l := &EventLog{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	if err := json.Unmarshal(data, &l.events); err != nil {
		return nil, fmt.Errorf("parse event log: %w", err)
	}
	return l, nil
}

// Append records one event and persists the journal.
func (l *EventLog) Append(kind string, x, y float64, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, Event{
		Timestamp: time.Now(),
		Kind:      kind,
		X:         x,
		Y:         y,
		Detail:    detail,
	})

	data, err := json.MarshalIndent(l.events, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0644)
}

// Len returns the number of recorded events.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Tail returns the most recent n events, oldest first.
func (l *EventLog) Tail(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.events) {
		n = len(l.events)
	}
	out := make([]Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

// WriteCSV exports the whole journal for spreadsheet reporting.
func (l *EventLog) WriteCSV(w io.Writer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "event", "x", "y", "detail"}); err != nil {
		return err
	}
	for _, e := range l.events {
		rec := []string{
			e.Timestamp.Format(time.RFC3339),
			e.Kind,
			fmt.Sprintf("%.1f", e.X),
			fmt.Sprintf("%.1f", e.Y),
			e.Detail,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
