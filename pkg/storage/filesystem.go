// Package storage persists workflow state under a .fieldtask/ data
// directory. Persistence here is the reference store; deployments may swap
// in any backend satisfying domain.InstanceRepository.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/propsync/fieldtask/pkg/domain/task"
)

const FieldtaskDir = ".fieldtask"
const InstancesFile = "instances.json"
const AuditFile = "audit.jsonl"
const DeadLetterFile = "deadletters.jsonl"

// instancesDocument is the on-disk shape of the instance store. Generated
// tracks which worker/date pairs a generation run already materialized.
type instancesDocument struct {
	Instances []task.Instance `json:"instances"`
	Generated map[string]bool `json:"generated"`
}

// FilesystemRepository stores instances and the audit trail as JSON files.
// File access is serialized; transition-level serialization is the
// application layer's concern.
type FilesystemRepository struct {
	root        string
	mu          sync.Mutex
	retryConfig retry.Config
}

func NewFilesystemRepository(root string) *FilesystemRepository {
	return &FilesystemRepository{
		root: root,
		retryConfig: retry.Config{
			MaxAttempts:   3,
			InitialDelay:  10 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Root returns the data root directory.
func (r *FilesystemRepository) Root() string {
	return r.root
}

// ResolvePath ensures the path is within the .fieldtask directory and
// prevents traversal.
func (r *FilesystemRepository) ResolvePath(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}

	baseDir := filepath.Join(r.root, FieldtaskDir)
	fullPath := filepath.Join(baseDir, filename)
	cleanPath := filepath.Clean(fullPath)

	if !strings.HasPrefix(cleanPath, baseDir) || filepath.Dir(cleanPath) != baseDir {
		return "", fmt.Errorf("invalid file path: %s", filename)
	}

	return cleanPath, nil
}

func (r *FilesystemRepository) Initialize() error {
	path := filepath.Join(r.root, FieldtaskDir)
	if err := os.MkdirAll(path, 0700); err != nil {
		return fmt.Errorf("failed to create .fieldtask directory: %w", err)
	}
	return nil
}

func (r *FilesystemRepository) IsInitialized() bool {
	_, err := os.Stat(filepath.Join(r.root, FieldtaskDir))
	return err == nil
}

// loadDocument reads the instance store, retrying transient read failures.
func (r *FilesystemRepository) loadDocument() (*instancesDocument, error) {
	retryer := retry.New[*instancesDocument](r.retryConfig)

	return retryer.Do(context.Background(), func(ctx context.Context) (*instancesDocument, error) {
		path, err := r.ResolvePath(InstancesFile)
		if err != nil {
			return nil, err
		}

		// #nosec G304 -- Path is resolved and validated via ResolvePath
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return &instancesDocument{Generated: make(map[string]bool)}, nil
			}
			return nil, fmt.Errorf("failed to read instances file: %w", err)
		}

		var doc instancesDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal instances: %w", err)
		}
		if doc.Generated == nil {
			doc.Generated = make(map[string]bool)
		}
		return &doc, nil
	})
}

func (r *FilesystemRepository) saveDocument(doc *instancesDocument) error {
	path, err := r.ResolvePath(InstancesFile)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal instances: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

func generationKey(workerID, date string) string {
	return workerID + "/" + date
}

// ListInstances returns every instance belonging to a worker.
func (r *FilesystemRepository) ListInstances(workerID string) ([]task.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadDocument()
	if err != nil {
		return nil, err
	}

	var instances []task.Instance
	for _, inst := range doc.Instances {
		if inst.WorkerID == workerID {
			instances = append(instances, inst)
		}
	}
	return instances, nil
}

// GetInstance returns one instance by ID.
func (r *FilesystemRepository) GetInstance(instanceID string) (task.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadDocument()
	if err != nil {
		return task.Instance{}, err
	}

	for _, inst := range doc.Instances {
		if inst.InstanceID == instanceID {
			return inst, nil
		}
	}
	return task.Instance{}, fmt.Errorf("instance %s: %w", instanceID, task.ErrInstanceNotFound)
}

// SaveInstance persists a mutated instance in place.
func (r *FilesystemRepository) SaveInstance(inst task.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadDocument()
	if err != nil {
		return err
	}

	for i := range doc.Instances {
		if doc.Instances[i].InstanceID == inst.InstanceID {
			doc.Instances[i] = inst
			return r.saveDocument(doc)
		}
	}
	return fmt.Errorf("instance %s: %w", inst.InstanceID, task.ErrInstanceNotFound)
}

// SaveGeneratedSet atomically records one generation run. A worker/date pair
// that already generated returns task.ErrGenerationConflict and leaves the
// store untouched, so concurrent duplicate generation requests cannot
// duplicate instances.
func (r *FilesystemRepository) SaveGeneratedSet(workerID, date string, instances []task.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadDocument()
	if err != nil {
		return err
	}

	key := generationKey(workerID, date)
	if doc.Generated[key] {
		return fmt.Errorf("worker %s date %s: %w", workerID, date, task.ErrGenerationConflict)
	}

	doc.Generated[key] = true
	doc.Instances = append(doc.Instances, instances...)
	return r.saveDocument(doc)
}

// HasGenerated reports whether a generation run happened for a worker/date.
func (r *FilesystemRepository) HasGenerated(workerID, date string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.loadDocument()
	if err != nil {
		return false, err
	}
	return doc.Generated[generationKey(workerID, date)], nil
}
