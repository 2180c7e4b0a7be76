package planner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Artifact is the audit document written after every batch run: the
// original request alongside the full outcome list. It is never read back
// by the tool itself.
type Artifact struct {
	Request  any      `json:"request"`
	Response *Summary `json:"response"`
}

// DefaultArtifactPath namespaces batch artifacts by environment and
// timestamp under the work tree.
func DefaultArtifactPath(baseDir, env, profileName string, now time.Time) string {
	slug := now.Format("20060102_150405")
	return filepath.Join(baseDir, "work", env, "operations", "batches",
		fmt.Sprintf("%s_create_items_%s.json", slug, profileName))
}

// WriteArtifact persists the request/response pair as indented JSON,
// creating parent directories as needed.
func WriteArtifact(path string, request any, summary *Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	data, err := json.MarshalIndent(Artifact{Request: request, Response: summary}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}
