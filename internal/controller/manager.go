// Package controller runs background reconciliation over recorded TaskRuns.
package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/klubi/relay/internal/store"
	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
)

// Result tells the manager when to look at a run again. Zero means only on
// the next store event.
type Result struct {
	RequeueAfter time.Duration
}

// Reconciler brings one run, identified by name, to its desired state.
type Reconciler interface {
	Reconcile(ctx context.Context, name string) (Result, error)
}

// Manager feeds store events into a WorkQueue and drives a Reconciler from it.
type Manager struct {
	store      store.Store
	reconciler Reconciler
	queue      *WorkQueue
	logger     *zap.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewManager creates a manager for r over s.
func NewManager(s store.Store, r Reconciler, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:      s,
		reconciler: r,
		queue:      NewWorkQueue(),
		logger:     logger.Named("controller"),
	}
}

// Start subscribes to the store, queues every existing run and starts the
// worker. It returns once the initial listing is queued.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	// Subscribe before listing so no change falls between the two.
	events, stopWatch := m.store.Watch()
	runs, err := m.store.List(store.ListOptions{})
	if err != nil {
		stopWatch()
		cancel()
		return fmt.Errorf("listing task runs: %w", err)
	}
	for _, run := range runs {
		m.queue.Add(run.Metadata.Name)
	}
	m.logger.Info("starting controller", zap.Int("runs", len(runs)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stopWatch()
		m.watchLoop(gctx, events)
		return nil
	})
	g.Go(func() error {
		m.workerLoop(gctx)
		return nil
	})

	m.cancel = cancel
	m.group = g
	return nil
}

// watchLoop queues the run behind every ADDED or MODIFIED event.
func (m *Manager) watchLoop(ctx context.Context, events <-chan v1alpha1.WatchEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type == v1alpha1.EventDeleted {
				continue
			}
			name := strings.TrimPrefix(ev.Key, store.RunKey(""))
			m.logger.Debug("watch event received",
				zap.String("type", string(ev.Type)),
				zap.String("run", name),
			)
			m.queue.Add(name)
		}
	}
}

func (m *Manager) workerLoop(ctx context.Context) {
	for {
		name, ok := m.queue.Get()
		if !ok {
			return
		}
		if ctx.Err() != nil {
			m.queue.Done(name)
			return
		}

		res, err := m.reconciler.Reconcile(ctx, name)
		switch {
		case err != nil:
			m.logger.Error("reconcile failed", zap.String("run", name), zap.Error(err))
			m.queue.Requeue(name)
		case res.RequeueAfter > 0:
			m.queue.Done(name)
			m.queue.AddAfter(name, res.RequeueAfter)
		default:
			m.queue.Done(name)
		}
	}
}

// Stop cancels the loops and waits for them to return.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.logger.Info("stopping controller")
	m.cancel()
	m.queue.Close()
	_ = m.group.Wait()
}
