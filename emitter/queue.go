package emitter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// QueuedEvent is one undeliverable event parked in the durable queue.
// Attempts counts drain-time delivery tries; an event that keeps failing is
// dropped once it crosses the ceiling rather than clogging the queue forever.
type QueuedEvent struct {
	Path     string          `json:"path"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// DurableQueue is a bounded FIFO of undelivered events persisted as a
// JSON-lines file, so queued events survive process restarts. When full,
// the oldest entry is evicted to admit the newest.
type DurableQueue struct {
	mu         sync.Mutex
	path       string
	maxEntries int
	maxRetries int
	entries    []QueuedEvent
}

const (
	defaultQueueCapacity = 100
	defaultRetryCeiling  = 3
)

// NewDurableQueue opens (or creates) the queue file at path and loads any
// entries left over from a previous run
func NewDurableQueue(path string, maxEntries, maxRetries int) (*DurableQueue, error) {
	if maxEntries <= 0 {
		maxEntries = defaultQueueCapacity
	}
	if maxRetries <= 0 {
		maxRetries = defaultRetryCeiling
	}

	q := &DurableQueue{
		path:       path,
		maxEntries: maxEntries,
		maxRetries: maxRetries,
	}
	if err := q.load(); err != nil {
		return nil, err
	}
	return q, nil
}

// Len returns the number of queued events
func (q *DurableQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Enqueue appends an event, evicting the oldest entry when the queue is full
func (q *DurableQueue) Enqueue(event QueuedEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, event)
	if len(q.entries) > q.maxEntries {
		q.entries = q.entries[len(q.entries)-q.maxEntries:]
	}
	return q.persist()
}

// Drain attempts to deliver every queued event through send. Delivered
// events leave the queue; failed ones stay with their attempt count bumped,
// unless they have hit the retry ceiling, in which case they are dropped.
func (q *DurableQueue) Drain(send func(path string, payload json.RawMessage) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var kept []QueuedEvent
	for _, entry := range q.entries {
		if err := send(entry.Path, entry.Payload); err != nil {
			entry.Attempts++
			if entry.Attempts < q.maxRetries {
				kept = append(kept, entry)
			}
			continue
		}
	}
	q.entries = kept
	return q.persist()
}

// load reads the JSON-lines queue file. Unparseable lines are skipped so a
// torn write cannot poison the whole queue.
func (q *DurableQueue) load() error {
	f, err := os.Open(q.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open queue file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry QueuedEvent
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		q.entries = append(q.entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read queue file: %w", err)
	}

	if len(q.entries) > q.maxEntries {
		q.entries = q.entries[len(q.entries)-q.maxEntries:]
	}
	return nil
}

// persist rewrites the queue file atomically via a temp file rename
func (q *DurableQueue) persist() error {
	dir := filepath.Dir(q.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create queue directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".queue-*")
	if err != nil {
		return fmt.Errorf("failed to create temp queue file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, entry := range q.entries {
		b, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		w.Write(b)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush queue file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close queue file: %w", err)
	}

	return os.Rename(tmp.Name(), q.path)
}
