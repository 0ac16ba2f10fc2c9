package webhook

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/propsync/fieldtask/pkg/domain/events"
)

// DeadLetterLog keeps workflow notifications that exhausted their delivery
// retries. Entries are JSON lines so an operator can inspect the backlog
// and replay it with standard tooling.
type DeadLetterLog struct {
	mu   sync.Mutex
	path string
}

// NewDeadLetterLog creates a log backed by the file at path. The file is
// created on the first recorded entry.
func NewDeadLetterLog(path string) *DeadLetterLog {
	return &DeadLetterLog{path: path}
}

// Record appends one undelivered notification.
func (l *DeadLetterLog) Record(dl events.DeadLetter) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open dead letter log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(dl); err != nil {
		return fmt.Errorf("write dead letter: %w", err)
	}
	return nil
}

// Entries returns every recorded dead letter, oldest first. A log that does
// not exist yet reads as empty. Undecodable lines are skipped: a partial
// trailing line from an interrupted write must not hide the rest of the
// backlog.
func (l *DeadLetterLog) Entries() ([]events.DeadLetter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []events.DeadLetter
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var dl events.DeadLetter
		if err := json.Unmarshal(line, &dl); err != nil {
			continue
		}
		entries = append(entries, dl)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
