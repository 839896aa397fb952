package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/klubi/relay/internal/store"
	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
)

// CodeInterrupted marks runs that were still in flight when the server that
// owned them stopped.
const CodeInterrupted = "INTERRUPTED"

// TaskRunReconciler fails runs abandoned by a previous server process and
// deletes finished runs once their TTL has passed.
type TaskRunReconciler struct {
	store  store.Store
	ttl    time.Duration
	since  time.Time
	now    func() time.Time
	logger *zap.Logger
	reaped *prometheus.CounterVec
}

// NewTaskRunReconciler creates a reconciler. Unfinished runs last updated
// before since are considered abandoned. A zero ttl keeps finished runs.
func NewTaskRunReconciler(s store.Store, ttl time.Duration, since time.Time, reg prometheus.Registerer, logger *zap.Logger) *TaskRunReconciler {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskRunReconciler{
		store:  s,
		ttl:    ttl,
		since:  since,
		now:    time.Now,
		logger: logger,
		reaped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "taskruns_reaped_total",
			Help:      "Task runs failed as interrupted or deleted as expired",
		}, []string{"reason"}),
	}
}

// Reconcile handles one run:
//
//  1. Unfinished and untouched since startup: mark Failed with CodeInterrupted.
//  2. Finished and older than the TTL: delete.
//  3. Finished and younger than the TTL: look again when it expires.
func (r *TaskRunReconciler) Reconcile(ctx context.Context, name string) (Result, error) {
	run, err := r.store.Get(name)
	if errors.Is(err, store.ErrNotFound) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("getting task run %q: %w", name, err)
	}

	if !run.Status.Phase.Finished() {
		if run.Metadata.UpdatedAt.Before(r.since) {
			return Result{}, r.markInterrupted(run)
		}
		return Result{}, nil
	}

	if r.ttl == 0 {
		return Result{}, nil
	}
	finished := run.Status.FinishedAt
	if finished.IsZero() {
		finished = run.Metadata.UpdatedAt
	}
	if left := finished.Add(r.ttl).Sub(r.now()); left > 0 {
		return Result{RequeueAfter: left}, nil
	}

	if err := r.store.Delete(name); err != nil && !errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("deleting expired task run %q: %w", name, err)
	}
	r.reaped.WithLabelValues("expired").Inc()
	r.logger.Info("expired task run deleted",
		zap.String("run", name),
		zap.Time("finishedAt", finished),
	)
	return Result{}, nil
}

func (r *TaskRunReconciler) markInterrupted(run *v1alpha1.TaskRun) error {
	now := r.now().UTC()
	var duration int64
	if !run.Status.StartedAt.IsZero() {
		duration = now.Sub(run.Status.StartedAt).Milliseconds()
	}
	prev := run.Status.Phase

	run.Status.Phase = v1alpha1.RunFailed
	run.Status.FinishedAt = now
	run.Status.Result = &v1alpha1.TaskResult{
		Success:  false,
		Error:    fmt.Sprintf("run was %s when the server stopped", prev),
		Code:     CodeInterrupted,
		Duration: duration,
	}
	if err := r.store.Update(run); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failing interrupted task run %q: %w", run.Metadata.Name, err)
	}

	r.reaped.WithLabelValues("interrupted").Inc()
	r.logger.Warn("interrupted task run marked as failed",
		zap.String("run", run.Metadata.Name),
		zap.String("phase", string(prev)),
	)
	return nil
}
