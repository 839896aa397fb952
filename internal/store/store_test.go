package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/klubi/relay/internal/config"
	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
)

// newTestRun creates a code review TaskRun for testing.
func newTestRun(name, prURL string) *v1alpha1.TaskRun {
	return v1alpha1.NewTaskRun(name, v1alpha1.Task{
		Type:     v1alpha1.TaskCodeReview,
		Data:     v1alpha1.CodeReviewData{PRURL: prURL},
		UserID:   "u1",
		Priority: v1alpha1.PriorityHigh,
	})
}

// backends runs fn against the memory and bolt stores.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore()
		defer s.Close()
		fn(t, s)
	})
	t.Run("bolt", func(t *testing.T) {
		s, err := NewBoltStore(filepath.Join(t.TempDir(), "data", "relay.db"))
		if err != nil {
			t.Fatalf("unexpected error opening bolt store: %v", err)
		}
		defer s.Close()
		fn(t, s)
	})
}

func TestRunKey(t *testing.T) {
	if got := RunKey("review-1"); got != "/TaskRun/review-1" {
		t.Errorf("expected /TaskRun/review-1, got %s", got)
	}
}

func TestCreateAndGet(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		run := newTestRun("review-1", "https://github.com/o/r/pull/1")
		if err := s.Create(run); err != nil {
			t.Fatalf("unexpected error on Create: %v", err)
		}
		if run.Metadata.UID == "" {
			t.Error("expected UID to be assigned")
		}
		if run.Metadata.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}

		got, err := s.Get("review-1")
		if err != nil {
			t.Fatalf("unexpected error on Get: %v", err)
		}
		if got.Kind != v1alpha1.KindTaskRun {
			t.Errorf("expected kind TaskRun, got %s", got.Kind)
		}
		if got.Status.Phase != v1alpha1.RunPending {
			t.Errorf("expected phase Pending, got %s", got.Status.Phase)
		}
		data, ok := got.Spec.Data.(v1alpha1.CodeReviewData)
		if !ok {
			t.Fatalf("expected CodeReviewData, got %T", got.Spec.Data)
		}
		if data.PRURL != "https://github.com/o/r/pull/1" {
			t.Errorf("expected prUrl to round-trip, got %s", data.PRURL)
		}
		if got.Spec.Priority != v1alpha1.PriorityHigh {
			t.Errorf("expected priority high, got %s", got.Spec.Priority)
		}
	})
}

func TestCreateDuplicate(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		if err := s.Create(newTestRun("dup", "https://github.com/o/r/pull/1")); err != nil {
			t.Fatalf("unexpected error on first Create: %v", err)
		}
		err := s.Create(newTestRun("dup", "https://github.com/o/r/pull/2"))
		if err != ErrAlreadyExists {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestCreateRequiresName(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	if err := s.Create(newTestRun("", "https://github.com/o/r/pull/1")); err == nil {
		t.Fatal("expected error for empty name, got nil")
	}
}

func TestGetNotFound(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		if _, err := s.Get("missing"); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUpdateKeepsIdentity(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		run := newTestRun("review-2", "https://github.com/o/r/pull/2")
		if err := s.Create(run); err != nil {
			t.Fatalf("unexpected error on Create: %v", err)
		}
		uid, created := run.Metadata.UID, run.Metadata.CreatedAt

		next := newTestRun("review-2", "https://github.com/o/r/pull/2")
		next.Status = v1alpha1.TaskRunStatus{
			Phase:  v1alpha1.RunSucceeded,
			Result: &v1alpha1.TaskResult{Success: true, Duration: 12},
		}
		if err := s.Update(next); err != nil {
			t.Fatalf("unexpected error on Update: %v", err)
		}

		got, err := s.Get("review-2")
		if err != nil {
			t.Fatalf("unexpected error on Get: %v", err)
		}
		if got.Metadata.UID != uid {
			t.Errorf("expected UID %s to be kept, got %s", uid, got.Metadata.UID)
		}
		if !got.Metadata.CreatedAt.Equal(created) {
			t.Errorf("expected CreatedAt %v to be kept, got %v", created, got.Metadata.CreatedAt)
		}
		if got.Status.Phase != v1alpha1.RunSucceeded {
			t.Errorf("expected phase Succeeded, got %s", got.Status.Phase)
		}
		if got.Status.Result == nil || !got.Status.Result.Success || got.Status.Result.Duration != 12 {
			t.Errorf("expected stored result, got %+v", got.Status.Result)
		}
	})
}

func TestUpdateNotFound(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		if err := s.Update(newTestRun("ghost", "https://github.com/o/r/pull/1")); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDelete(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		if err := s.Create(newTestRun("gone", "https://github.com/o/r/pull/1")); err != nil {
			t.Fatalf("unexpected error on Create: %v", err)
		}
		if err := s.Delete("gone"); err != nil {
			t.Fatalf("unexpected error on Delete: %v", err)
		}
		if _, err := s.Get("gone"); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound after Delete, got %v", err)
		}
		if err := s.Delete("gone"); err != ErrNotFound {
			t.Fatalf("expected ErrNotFound on second Delete, got %v", err)
		}
	})
}

func TestListOrderAndFilters(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		rs := s.(*runStore)
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		tick := 0
		rs.now = func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Minute)
		}

		review := newTestRun("a-review", "https://github.com/o/r/pull/1")
		deploy := v1alpha1.NewTaskRun("b-deploy", v1alpha1.Task{
			Type: v1alpha1.TaskDeployment,
			Data: v1alpha1.DeploymentData{Environment: "staging"},
		})
		failed := newTestRun("c-review", "https://github.com/o/r/pull/3")
		failed.Status.Phase = v1alpha1.RunFailed

		for _, r := range []*v1alpha1.TaskRun{review, deploy, failed} {
			if err := s.Create(r); err != nil {
				t.Fatalf("unexpected error creating %s: %v", r.Metadata.Name, err)
			}
		}

		all, err := s.List(ListOptions{})
		if err != nil {
			t.Fatalf("unexpected error on List: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(all))
		}
		want := []string{"c-review", "b-deploy", "a-review"}
		for i, name := range want {
			if all[i].Metadata.Name != name {
				t.Errorf("expected run %d to be %s, got %s", i, name, all[i].Metadata.Name)
			}
		}

		reviews, _ := s.List(ListOptions{Type: v1alpha1.TaskCodeReview})
		if len(reviews) != 2 {
			t.Errorf("expected 2 code review runs, got %d", len(reviews))
		}
		failures, _ := s.List(ListOptions{Phase: v1alpha1.RunFailed})
		if len(failures) != 1 || failures[0].Metadata.Name != "c-review" {
			t.Errorf("expected only c-review to be failed, got %d runs", len(failures))
		}
		limited, _ := s.List(ListOptions{Limit: 1})
		if len(limited) != 1 || limited[0].Metadata.Name != "c-review" {
			t.Errorf("expected newest run only, got %d runs", len(limited))
		}
	})
}

func TestWatch(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ch, cancel := s.Watch()
	defer cancel()

	run := newTestRun("watched", "https://github.com/o/r/pull/1")
	if err := s.Create(run); err != nil {
		t.Fatalf("unexpected error on Create: %v", err)
	}
	run.Status.Phase = v1alpha1.RunRunning
	if err := s.Update(run); err != nil {
		t.Fatalf("unexpected error on Update: %v", err)
	}
	if err := s.Delete("watched"); err != nil {
		t.Fatalf("unexpected error on Delete: %v", err)
	}

	for _, want := range []v1alpha1.EventType{v1alpha1.EventAdded, v1alpha1.EventModified, v1alpha1.EventDeleted} {
		select {
		case evt := <-ch:
			if evt.Type != want {
				t.Errorf("expected %s event, got %s", want, evt.Type)
			}
			if evt.Key != "/TaskRun/watched" {
				t.Errorf("expected key /TaskRun/watched, got %s", evt.Key)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func TestWatchCancelClosesChannel(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ch, cancel := s.Watch()
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}

func TestWatchDropsWhenFull(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ch, cancel := s.Watch()
	defer cancel()

	for i := 0; i < watchBuffer+10; i++ {
		run := newTestRun(fmt.Sprintf("run-%d", i), "https://github.com/o/r/pull/1")
		if err := s.Create(run); err != nil {
			t.Fatalf("unexpected error on Create: %v", err)
		}
	}
	if len(ch) != watchBuffer {
		t.Errorf("expected %d buffered events, got %d", watchBuffer, len(ch))
	}
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.db")

	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("unexpected error opening bolt store: %v", err)
	}
	if err := s.Create(newTestRun("durable", "https://github.com/o/r/pull/9")); err != nil {
		t.Fatalf("unexpected error on Create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error on Close: %v", err)
	}

	s, err = NewBoltStore(path)
	if err != nil {
		t.Fatalf("unexpected error reopening bolt store: %v", err)
	}
	defer s.Close()

	got, err := s.Get("durable")
	if err != nil {
		t.Fatalf("expected run to survive reopen, got %v", err)
	}
	if got.Metadata.Name != "durable" {
		t.Errorf("expected name durable, got %s", got.Metadata.Name)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(config.StoreConfig{Type: "memory"}, "")
	if err != nil {
		t.Fatalf("unexpected error for memory store: %v", err)
	}
	s.Close()

	s, err = New(config.StoreConfig{Type: "bolt"}, filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("unexpected error for bolt store: %v", err)
	}
	s.Close()

	if _, err := New(config.StoreConfig{Type: "etcd"}, ""); err == nil {
		t.Fatal("expected error for unknown store type, got nil")
	}
}
