package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// Recorder appends audit records to a writer as newline-delimited JSON and
// fans them out to live subscribers. Thread-safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	writer io.Writer // nil disables persistence
	closer io.Closer
	count  int

	subMu  sync.RWMutex
	subs   map[int]func(AuditRecord)
	nextID int
}

// New creates a Recorder writing to w. A nil w keeps only the count and
// the subscribers.
func New(w io.Writer) *Recorder {
	return &Recorder{
		writer: w,
		subs:   make(map[int]func(AuditRecord)),
	}
}

// Open appends to the audit file at path, creating it if needed.
func Open(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	r := New(f)
	r.closer = f
	return r, nil
}

// Record appends rec and notifies subscribers. Subscribers are notified
// even when the write fails; the write error is returned for logging.
func (r *Recorder) Record(rec AuditRecord) error {
	werr := r.write(rec)

	r.subMu.RLock()
	for _, fn := range r.subs {
		fn(rec)
	}
	r.subMu.RUnlock()

	return werr
}

func (r *Recorder) write(rec AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count++
	if r.writer == nil {
		return nil
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}
	// One Write per record keeps lines whole under O_APPEND.
	if _, err := r.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing audit record: %w", err)
	}
	return nil
}

// Subscribe registers fn for every future record. The returned function
// removes it. fn runs on the request goroutine and must not block.
func (r *Recorder) Subscribe(fn func(AuditRecord)) func() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		delete(r.subs, id)
	}
}

// Len returns the number of records seen by this Recorder.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close closes the audit file if the Recorder opened it.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	r.writer = nil
	return err
}

// ReadLog parses newline-delimited audit records. Blank lines are skipped.
func ReadLog(rd io.Reader) ([]AuditRecord, error) {
	var records []AuditRecord
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec AuditRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return records, fmt.Errorf("audit log line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return records, fmt.Errorf("reading audit log: %w", err)
	}
	return records, nil
}

// ReadLogFile reads the audit file at path.
func ReadLogFile(path string) ([]AuditRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()
	return ReadLog(f)
}
