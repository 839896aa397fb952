// Package store keeps the history of TaskRuns submitted through the API.
//
// Runs are kept under "/TaskRun/{name}" in a key/value backend, either an
// in-memory map or a BoltDB file. The orchestrator itself never reads the
// store.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/klubi/relay/internal/config"
	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
)

// Store persists TaskRuns.
type Store interface {
	// Create stores a new run. It fills UID and timestamps and returns
	// ErrAlreadyExists if the name is taken.
	Create(run *v1alpha1.TaskRun) error

	// Get returns the run with the given name or ErrNotFound.
	Get(name string) (*v1alpha1.TaskRun, error)

	// Update replaces an existing run, keeping its UID and creation time.
	// Returns ErrNotFound if the run does not exist.
	Update(run *v1alpha1.TaskRun) error

	// Delete removes a run. Returns ErrNotFound if it does not exist.
	Delete(name string) error

	// List returns runs matching opts, newest first.
	List(opts ListOptions) ([]*v1alpha1.TaskRun, error)

	// Watch returns a channel of run mutations. The cancel function removes
	// the watcher and closes the channel.
	Watch() (<-chan v1alpha1.WatchEvent, func())

	// Close releases the backend (e.g. the BoltDB file handle).
	Close() error
}

// ListOptions filter List. Zero values match everything.
type ListOptions struct {
	Phase v1alpha1.TaskRunPhase
	Type  v1alpha1.TaskType
	Limit int
}

// Common sentinel errors.
var (
	ErrAlreadyExists = fmt.Errorf("key already exists")
	ErrNotFound      = fmt.Errorf("key not found")
)

// RunKey builds the canonical key of a run.
//
//	RunKey("review-1") => "/TaskRun/review-1"
func RunKey(name string) string {
	return "/" + v1alpha1.KindTaskRun + "/" + name
}

// New opens the backend selected by cfg.Type.
func New(cfg config.StoreConfig, dbPath string) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "bolt":
		return NewBoltStore(dbPath)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

// backend is the raw key/value layer under a runStore.
type backend interface {
	insert(key string, value []byte) error
	replace(key string, value []byte) error
	get(key string) ([]byte, error)
	remove(key string) ([]byte, error)
	scan(prefix string, fn func(key string, value []byte) error) error
	close() error
}

// runStore implements Store on top of a backend.
type runStore struct {
	kv  backend
	hub *hub
	now func() time.Time
}

func newRunStore(kv backend) *runStore {
	return &runStore{kv: kv, hub: newHub(), now: time.Now}
}

func (s *runStore) Create(run *v1alpha1.TaskRun) error {
	if run.Metadata.Name == "" {
		return fmt.Errorf("task run name is required")
	}
	run.APIVersion = v1alpha1.APIVersion
	run.Kind = v1alpha1.KindTaskRun
	if run.Metadata.UID == "" {
		run.Metadata.UID = uuid.NewString()
	}
	now := s.now().UTC()
	run.Metadata.CreatedAt = now
	run.Metadata.UpdatedAt = now
	if run.Status.Phase == "" {
		run.Status.Phase = v1alpha1.RunPending
	}

	raw, err := json.Marshal(run)
	if err != nil {
		return err
	}
	key := RunKey(run.Metadata.Name)
	if err := s.kv.insert(key, raw); err != nil {
		return err
	}
	s.hub.publish(v1alpha1.WatchEvent{Type: v1alpha1.EventAdded, Kind: v1alpha1.KindTaskRun, Key: key, Object: run})
	return nil
}

func (s *runStore) Get(name string) (*v1alpha1.TaskRun, error) {
	raw, err := s.kv.get(RunKey(name))
	if err != nil {
		return nil, err
	}
	return decodeRun(raw)
}

func (s *runStore) Update(run *v1alpha1.TaskRun) error {
	key := RunKey(run.Metadata.Name)
	prev, err := s.Get(run.Metadata.Name)
	if err != nil {
		return err
	}
	run.TypeMeta = prev.TypeMeta
	run.Metadata.UID = prev.Metadata.UID
	run.Metadata.CreatedAt = prev.Metadata.CreatedAt
	run.Metadata.UpdatedAt = s.now().UTC()

	raw, err := json.Marshal(run)
	if err != nil {
		return err
	}
	if err := s.kv.replace(key, raw); err != nil {
		return err
	}
	s.hub.publish(v1alpha1.WatchEvent{Type: v1alpha1.EventModified, Kind: v1alpha1.KindTaskRun, Key: key, Object: run})
	return nil
}

func (s *runStore) Delete(name string) error {
	key := RunKey(name)
	raw, err := s.kv.remove(key)
	if err != nil {
		return err
	}
	// Watchers receive the deleted run when it still decodes.
	var obj interface{}
	if run, err := decodeRun(raw); err == nil {
		obj = run
	}
	s.hub.publish(v1alpha1.WatchEvent{Type: v1alpha1.EventDeleted, Kind: v1alpha1.KindTaskRun, Key: key, Object: obj})
	return nil
}

func (s *runStore) List(opts ListOptions) ([]*v1alpha1.TaskRun, error) {
	var runs []*v1alpha1.TaskRun
	err := s.kv.scan(RunKey(""), func(key string, raw []byte) error {
		run, err := decodeRun(raw)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		if opts.Phase != "" && run.Status.Phase != opts.Phase {
			return nil
		}
		if opts.Type != "" && run.Spec.Type != opts.Type {
			return nil
		}
		runs = append(runs, run)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		a, b := runs[i].Metadata, runs[j].Metadata
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return strings.Compare(a.Name, b.Name) < 0
	})
	if opts.Limit > 0 && len(runs) > opts.Limit {
		runs = runs[:opts.Limit]
	}
	return runs, nil
}

func (s *runStore) Watch() (<-chan v1alpha1.WatchEvent, func()) {
	return s.hub.subscribe()
}

func (s *runStore) Close() error {
	s.hub.closeAll()
	return s.kv.close()
}

func decodeRun(raw []byte) (*v1alpha1.TaskRun, error) {
	var run v1alpha1.TaskRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, err
	}
	return &run, nil
}
