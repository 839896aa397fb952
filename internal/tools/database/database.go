// Package database provides the db:* tools. Queries and migrations are
// mocked; nothing connects to a database.
package database

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/klubi/relay/internal/tools"
)

// Tool names.
const (
	Query   = "db:query"
	Migrate = "db:migrate"
)

// NewRegistry returns a registry holding every database tool.
func NewRegistry(logger *zap.Logger, regOpts ...tools.Option) (*tools.Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := tools.NewRegistry(append([]tools.Option{tools.WithLogger(logger)}, regOpts...)...)

	if err := r.Register(Query, func() (tools.Tool, error) { return queryTool(logger), nil }); err != nil {
		return nil, err
	}
	if err := r.Register(Migrate, func() (tools.Tool, error) { return migrateTool(logger), nil }); err != nil {
		return nil, err
	}
	return r, nil
}

// QueryInput is the input of db:query.
type QueryInput struct {
	SQL    string        `json:"sql" validate:"required" desc:"SQL statement"`
	Params []interface{} `json:"params,omitempty" desc:"Positional parameters"`
	Limit  int           `json:"limit,omitempty" validate:"min=1,max=1000" default:"100" desc:"Maximum rows returned"`
}

// QueryResult is the output of db:query.
type QueryResult struct {
	Columns  []string                 `json:"columns"`
	Rows     []map[string]interface{} `json:"rows"`
	RowCount int                      `json:"rowCount"`
	ReadOnly bool                     `json:"readOnly"`
}

func queryTool(logger *zap.Logger) tools.Tool {
	return tools.New(Query, "Run a SQL query",
		func(ctx context.Context, in QueryInput) (QueryResult, error) {
			readOnly := isReadOnly(in.SQL)
			logger.Info("Executing query",
				zap.Bool("readOnly", readOnly),
				zap.Int("params", len(in.Params)),
			)
			if !readOnly {
				return QueryResult{Columns: []string{}, Rows: []map[string]interface{}{}, RowCount: 1}, nil
			}
			rows := []map[string]interface{}{
				{"id": 1, "name": "alpha"},
				{"id": 2, "name": "beta"},
			}
			if len(rows) > in.Limit {
				rows = rows[:in.Limit]
			}
			return QueryResult{
				Columns:  []string{"id", "name"},
				Rows:     rows,
				RowCount: len(rows),
				ReadOnly: true,
			}, nil
		})
}

func isReadOnly(sql string) bool {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "SHOW", "EXPLAIN":
		return true
	}
	return false
}

// MigrateInput is the input of db:migrate.
type MigrateInput struct {
	Direction string `json:"direction,omitempty" validate:"oneof=up down" default:"up" desc:"Migration direction"`
	Steps     int    `json:"steps,omitempty" validate:"min=0" desc:"Number of migrations; 0 applies all pending"`
	DryRun    bool   `json:"dryRun,omitempty" desc:"Report without applying"`
}

// MigrateResult is the output of db:migrate.
type MigrateResult struct {
	Direction string   `json:"direction"`
	Applied   []string `json:"applied"`
	DryRun    bool     `json:"dryRun"`
	Version   int      `json:"version"`
}

var mockMigrations = []string{"001_create_users", "002_add_indexes", "003_create_audit_log"}

func migrateTool(logger *zap.Logger) tools.Tool {
	return tools.New(Migrate, "Apply or roll back schema migrations",
		func(ctx context.Context, in MigrateInput) (MigrateResult, error) {
			n := len(mockMigrations)
			if in.Steps > 0 && in.Steps < n {
				n = in.Steps
			}
			applied := make([]string, n)
			if in.Direction == "up" {
				copy(applied, mockMigrations[:n])
			} else {
				for i := 0; i < n; i++ {
					applied[i] = mockMigrations[len(mockMigrations)-1-i]
				}
			}

			version := len(mockMigrations)
			if in.Direction == "down" {
				version -= n
			}
			logger.Info("Running migrations",
				zap.String("direction", in.Direction),
				zap.Int("count", n),
				zap.Bool("dryRun", in.DryRun),
			)
			return MigrateResult{
				Direction: in.Direction,
				Applied:   applied,
				DryRun:    in.DryRun,
				Version:   version,
			}, nil
		})
}
