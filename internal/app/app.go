// Package app wires configuration into a ready orchestrator, its tools and
// the TaskRun store.
package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/klubi/relay/internal/agent"
	"github.com/klubi/relay/internal/agents/codereview"
	"github.com/klubi/relay/internal/agents/deployment"
	"github.com/klubi/relay/internal/config"
	"github.com/klubi/relay/internal/controller"
	"github.com/klubi/relay/internal/httpfetch"
	"github.com/klubi/relay/internal/orchestrator"
	"github.com/klubi/relay/internal/store"
	"github.com/klubi/relay/internal/tools"
	"github.com/klubi/relay/internal/tools/database"
	"github.com/klubi/relay/internal/tools/filesystem"
	"github.com/klubi/relay/internal/tools/github"
	"github.com/klubi/relay/pkg/apis/v1alpha1"
)

// App holds the long-lived components of a relay process.
type App struct {
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
	// Tools is every tool known to the process, across agents.
	Tools   *tools.Registry
	Store   store.Store
	Metrics *prometheus.Registry
	// Controller fails abandoned runs and expires old ones. It is not
	// started by Build.
	Controller *controller.Manager
}

// Build assembles an App from cfg. The caller owns the returned App and must
// Close it.
func Build(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cacheSize := tools.WithCacheSize(cfg.Tools.CacheSize)
	fetcher := httpfetch.New(&http.Client{}, logger)

	gh, err := github.NewRegistry(github.Options{
		APIURL:  cfg.Tools.GitHubAPIURL,
		Token:   cfg.Tools.GitHubToken,
		Timeout: cfg.Tools.HTTPTimeout,
	}, fetcher, logger, cacheSize)
	if err != nil {
		return nil, fmt.Errorf("github tools: %w", err)
	}
	files, err := filesystem.NewRegistry(logger, cacheSize)
	if err != nil {
		return nil, fmt.Errorf("filesystem tools: %w", err)
	}
	db, err := database.NewRegistry(logger, cacheSize)
	if err != nil {
		return nil, fmt.Errorf("database tools: %w", err)
	}

	all := tools.NewRegistry(tools.WithLogger(logger), cacheSize)
	if err := all.Merge(gh, files, db); err != nil {
		return nil, err
	}

	gen, err := agent.NewGenerator(cfg.Agent, logger)
	if err != nil {
		return nil, err
	}
	reviewer, err := codereview.New(codereview.Params{
		GitHub:            gh,
		Files:             files,
		Generator:         gen,
		Model:             cfg.Agent.Model,
		MaxTokens:         cfg.Agent.MaxTokens,
		Temperature:       cfg.Agent.Temperature,
		MaxFilesPerReview: cfg.Tools.MaxReviewFiles,
		ToolOptions:       []tools.Option{cacheSize},
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	deployer, err := deployment.New(gh, db, logger, cacheSize)
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New([]orchestrator.Route{
		{Type: v1alpha1.TaskCodeReview, Agent: reviewer},
		{Type: v1alpha1.TaskDeployment, Agent: deployer},
	}, orchestrator.Options{
		Retry: orchestrator.RetryPolicy{
			MaxAttempts:    cfg.Orchestrator.MaxAttempts,
			InitialBackoff: cfg.Orchestrator.InitialBackoff,
			MaxBackoff:     cfg.Orchestrator.MaxBackoff,
		},
		TaskTimeout: cfg.Orchestrator.TaskTimeout,
		Metrics:     orchestrator.NewMetrics(reg),
	}, logger)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Store, cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Type, err)
	}

	reconciler := controller.NewTaskRunReconciler(st, cfg.Store.TTL, time.Now(), reg, logger)

	logger.Debug("relay assembled",
		zap.Int("tools", all.Len()),
		zap.String("generator", cfg.Agent.Generator),
		zap.String("store", cfg.Store.Type),
	)

	return &App{
		Config:       cfg,
		Orchestrator: orch,
		Tools:        all,
		Store:        st,
		Metrics:      reg,
		Controller:   controller.NewManager(st, reconciler, logger),
	}, nil
}

// Close stops the controller and releases the store.
func (a *App) Close() error {
	a.Controller.Stop()
	return a.Store.Close()
}
