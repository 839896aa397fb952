package apiserver

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires every API endpoint to its handler.
func (s *Server) registerRoutes() {
	api := s.router.PathPrefix("/api/v1alpha1").Subrouter()

	// Health and metrics
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})).Methods("GET")

	// One-shot orchestration, nothing recorded
	api.HandleFunc("/orchestrate", s.handleOrchestrate).Methods("POST")

	// TaskRuns
	api.HandleFunc("/taskruns", s.handleListTaskRuns).Methods("GET")
	api.HandleFunc("/taskruns", s.handleCreateTaskRun).Methods("POST")
	api.HandleFunc("/taskruns/{name}", s.handleGetTaskRun).Methods("GET")
	api.HandleFunc("/taskruns/{name}", s.handleDeleteTaskRun).Methods("DELETE")

	// Tools
	api.HandleFunc("/tools", s.handleListTools).Methods("GET")
	api.HandleFunc("/tools/{name}", s.handleGetTool).Methods("GET")
	api.HandleFunc("/tools/{name}/invoke", s.handleInvokeTool).Methods("POST")
}
