// Package filesystem provides the files:* tools. They return mock data and
// never touch the real filesystem.
package filesystem

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/klubi/relay/internal/tools"
)

// Tool names.
const (
	Read   = "files:read"
	Write  = "files:write"
	Search = "files:search"
)

// NewRegistry returns a registry holding every filesystem tool.
func NewRegistry(logger *zap.Logger, regOpts ...tools.Option) (*tools.Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := tools.NewRegistry(append([]tools.Option{tools.WithLogger(logger)}, regOpts...)...)

	if err := r.Register(Read, func() (tools.Tool, error) { return readTool(), nil }); err != nil {
		return nil, err
	}
	if err := r.Register(Write, func() (tools.Tool, error) { return writeTool(logger), nil }); err != nil {
		return nil, err
	}
	if err := r.Register(Search, func() (tools.Tool, error) { return searchTool(), nil }); err != nil {
		return nil, err
	}
	return r, nil
}

// ReadInput is the input of files:read.
type ReadInput struct {
	Path     string `json:"path" validate:"required" desc:"File path"`
	Encoding string `json:"encoding,omitempty" validate:"oneof=utf-8 base64" default:"utf-8" desc:"Content encoding"`
}

// FileContent is the output of files:read.
type FileContent struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	Size     int    `json:"size"`
	Lines    int    `json:"lines"`
}

func readTool() tools.Tool {
	return tools.New(Read, "Read the contents of a file",
		func(ctx context.Context, in ReadInput) (FileContent, error) {
			content := fmt.Sprintf("// Mock content of %s\nexport const value = 42;\n", in.Path)
			return FileContent{
				Path:     in.Path,
				Content:  content,
				Encoding: in.Encoding,
				Size:     len(content),
				Lines:    strings.Count(content, "\n") + 1,
			}, nil
		})
}

// WriteInput is the input of files:write.
type WriteInput struct {
	Path     string `json:"path" validate:"required" desc:"File path"`
	Content  string `json:"content" desc:"Content to write"`
	Encoding string `json:"encoding,omitempty" validate:"oneof=utf-8 base64" default:"utf-8" desc:"Content encoding"`
}

// WriteResult is the output of files:write.
type WriteResult struct {
	Path         string `json:"path"`
	BytesWritten int    `json:"bytesWritten"`
	Success      bool   `json:"success"`
}

func writeTool(logger *zap.Logger) tools.Tool {
	return tools.New(Write, "Write content to a file",
		func(ctx context.Context, in WriteInput) (WriteResult, error) {
			logger.Info("Writing to path",
				zap.String("path", in.Path),
				zap.Int("bytes", len(in.Content)),
			)
			return WriteResult{
				Path:         in.Path,
				BytesWritten: len(in.Content),
				Success:      true,
			}, nil
		})
}

// SearchInput is the input of files:search.
type SearchInput struct {
	Pattern   string `json:"pattern" validate:"required" desc:"Text or pattern to find"`
	Directory string `json:"directory,omitempty" default:"." desc:"Directory to search"`
	FileType  string `json:"fileType,omitempty" desc:"File extension filter, e.g. ts"`
}

// Match is one matching file.
type Match struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// SearchResult is the output of files:search.
type SearchResult struct {
	Matches      []Match `json:"matches"`
	TotalMatches int     `json:"totalMatches"`
	TotalFiles   int     `json:"totalFiles"`
}

func searchTool() tools.Tool {
	return tools.New(Search, "Search for files containing a pattern",
		func(ctx context.Context, in SearchInput) (SearchResult, error) {
			ext := in.FileType
			if ext == "" {
				ext = "ts"
			}
			dir := strings.TrimRight(in.Directory, "/")
			matches := []Match{
				{File: fmt.Sprintf("%s/src/index.%s", dir, ext), Line: 10, Content: "match for " + in.Pattern},
				{File: fmt.Sprintf("%s/src/utils.%s", dir, ext), Line: 25, Content: "another match for " + in.Pattern},
			}
			return SearchResult{
				Matches:      matches,
				TotalMatches: 3,
				TotalFiles:   len(matches),
			}, nil
		})
}
