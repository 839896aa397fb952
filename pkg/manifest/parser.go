// Package manifest parses TaskRun YAML manifests.
//
//	apiVersion: relay.dev/v1alpha1
//	kind: TaskRun
//	metadata:
//	  name: review-42
//	spec:
//	  type: code-review
//	  data:
//	    prUrl: https://github.com/acme/api/pull/42
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/klubi/relay/pkg/apis/v1alpha1"
)

// ParseFile reads a YAML file at the given path and parses it into TaskRuns.
// Multi-document YAML (separated by ---) is supported. A path of "-" reads
// standard input.
func ParseFile(path string) ([]*v1alpha1.TaskRun, error) {
	if path == "-" {
		return Parse(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest file %s: %w", path, err)
	}
	return ParseBytes(data)
}

// Parse reads every document from r.
func Parse(r io.Reader) ([]*v1alpha1.TaskRun, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses raw YAML bytes into TaskRuns.
func ParseBytes(data []byte) ([]*v1alpha1.TaskRun, error) {
	var runs []*v1alpha1.TaskRun

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	for i := 0; ; i++ {
		var node yaml.Node
		if err := decoder.Decode(&node); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decoding yaml document %d: %w", i, err)
		}
		if node.Kind == 0 {
			continue
		}

		// Read TypeMeta first so an unknown kind fails before its spec is
		// decoded as a task.
		var meta v1alpha1.TypeMeta
		if err := node.Decode(&meta); err != nil {
			return nil, fmt.Errorf("document %d: decoding type meta: %w", i, err)
		}
		if meta.Kind == "" && meta.APIVersion == "" {
			continue
		}
		if meta.Kind != v1alpha1.KindTaskRun {
			return nil, fmt.Errorf("document %d: unknown resource kind: %q", i, meta.Kind)
		}
		if meta.APIVersion != "" && meta.APIVersion != v1alpha1.APIVersion {
			return nil, fmt.Errorf("document %d: unsupported apiVersion %q", i, meta.APIVersion)
		}

		var run v1alpha1.TaskRun
		if err := node.Decode(&run); err != nil {
			return nil, fmt.Errorf("document %d: decoding TaskRun: %w", i, err)
		}
		if run.APIVersion == "" {
			run.APIVersion = v1alpha1.APIVersion
		}
		if err := validate(&run); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		runs = append(runs, &run)
	}

	return runs, nil
}

// validate checks the fields a submission needs. The name may be left empty
// for the server to generate.
func validate(run *v1alpha1.TaskRun) error {
	if run.Spec.Type == "" {
		return fmt.Errorf("validation failed: TaskRun %q has no spec.type", run.Metadata.Name)
	}
	if run.Status.Phase != "" || run.Status.Result != nil {
		return fmt.Errorf("validation failed: TaskRun %q must not set status", run.Metadata.Name)
	}
	return nil
}
