package filesystem

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/klubi/relay/internal/apperrors"
	"github.com/klubi/relay/internal/tools"
)

func newRegistry(t *testing.T) (*tools.Registry, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	r, err := NewRegistry(zap.New(core))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r, logs
}

func TestRead(t *testing.T) {
	r, _ := newRegistry(t)

	out, err := r.Invoke(context.Background(), Read, map[string]string{"path": "src/index.ts"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fc := out.(FileContent)
	if fc.Encoding != "utf-8" {
		t.Errorf("expected default encoding utf-8, got %q", fc.Encoding)
	}
	if !strings.Contains(fc.Content, "src/index.ts") {
		t.Errorf("expected content to mention path, got %q", fc.Content)
	}
	if fc.Size != len(fc.Content) || fc.Lines != 3 {
		t.Errorf("unexpected size/lines %d/%d", fc.Size, fc.Lines)
	}
}

func TestReadRejectsUnknownEncoding(t *testing.T) {
	r, _ := newRegistry(t)

	_, err := r.Invoke(context.Background(), Read, map[string]string{"path": "a", "encoding": "latin1"})

	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Violations[0].Field != "encoding" || verr.Violations[0].Constraint != "oneof" {
		t.Errorf("unexpected violation %+v", verr.Violations[0])
	}
}

func TestWrite(t *testing.T) {
	r, logs := newRegistry(t)

	out, err := r.Invoke(context.Background(), Write, WriteInput{Path: "out.txt", Content: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := out.(WriteResult)
	if !res.Success || res.BytesWritten != 5 {
		t.Errorf("unexpected write result %+v", res)
	}
	if logs.FilterMessage("Writing to path").Len() != 1 {
		t.Error("expected a write log record")
	}
}

func TestWriteMissingPathHasNoSideEffect(t *testing.T) {
	r, logs := newRegistry(t)

	if _, err := r.Invoke(context.Background(), Write, map[string]string{"content": "x"}); err == nil {
		t.Fatal("expected validation error")
	}
	if logs.Len() != 0 {
		t.Errorf("expected no log records, got %d", logs.Len())
	}
}

func TestSearch(t *testing.T) {
	r, _ := newRegistry(t)

	out, err := r.Invoke(context.Background(), Search, map[string]string{"pattern": "TODO", "fileType": "go"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := out.(SearchResult)
	if res.TotalMatches != 3 || res.TotalFiles != 2 || len(res.Matches) != 2 {
		t.Errorf("unexpected totals %+v", res)
	}
	if res.Matches[0].File != "./src/index.go" {
		t.Errorf("expected default directory and file type, got %s", res.Matches[0].File)
	}
}
