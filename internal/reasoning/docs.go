package reasoning

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

// WriteArtifacts decodes any documents in docs into dir and returns the
// path of the primary artifact (the demand letter when both are present).
// Returns "" when docs carries nothing.
func WriteArtifacts(dir, sessionID string, docs *DocSet) (string, error) {
	if docs == nil {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifacts dir: %w", err)
	}

	var primary string
	write := func(b64, suffix string) (string, error) {
		if b64 == "" {
			return "", nil
		}
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", suffix, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.pdf", sessionID, suffix))
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return "", err
		}
		return path, nil
	}

	memoPath, err := write(docs.ReasoningMemo, "reasoning_memo")
	if err != nil {
		return "", err
	}
	letterPath, err := write(docs.DemandLetter, "demand_letter")
	if err != nil {
		return "", err
	}

	primary = letterPath
	if primary == "" {
		primary = memoPath
	}
	return primary, nil
}
