package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/propsync/fieldtask/pkg/domain"
)

func (r *FilesystemRepository) RecordEvent(event domain.AuditEvent) error {
	path, err := r.ResolvePath(AuditFile)
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	data = append(data, '\n')

	// #nosec G304 -- Path is resolved and validated via ResolvePath
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}

	return nil
}

func (r *FilesystemRepository) LoadAuditEvents() ([]domain.AuditEvent, error) {
	path, err := r.ResolvePath(AuditFile)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- Path is resolved and validated via ResolvePath
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.AuditEvent{}, nil
		}
		return nil, fmt.Errorf("failed to read audit file: %w", err)
	}

	var events []domain.AuditEvent
	lines := bytes.Split(data, []byte("\n"))
	for _, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e domain.AuditEvent
		if err := json.Unmarshal(line, &e); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, e)
	}

	return events, nil
}
