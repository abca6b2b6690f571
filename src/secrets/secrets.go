// Package secrets scans files bundled into a release asset for credentials
// using the gitleaks default rule set.
package secrets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// ErrSecretFound is returned when a bundled file contains a credential.
var ErrSecretFound = errors.New("secret found in release files")

// MaxFileSize bounds the files read for scanning. Larger files are skipped.
const MaxFileSize = 10 << 20

// Finding is one detected credential.
type Finding struct {
	File        string
	Line        int
	Column      int
	RuleID      string
	Description string
}

// Scanner runs the detector over files and directory trees.
type Scanner struct {
	detector *detect.Detector
}

// NewScanner loads the default gitleaks configuration.
func NewScanner() (*Scanner, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading secret rules: %w", err)
	}
	return &Scanner{detector: d}, nil
}

// Scan checks every regular text file under paths. Binary files and files
// over MaxFileSize are skipped. Findings are sorted by file and line.
func (s *Scanner) Scan(ctx context.Context, paths []string) ([]Finding, error) {
	var findings []Finding
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			ff, err := s.scanFile(path)
			if err != nil {
				return err
			}
			findings = append(findings, ff...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].Line < findings[j].Line
	})
	return findings, nil
}

func (s *Scanner) scanFile(path string) ([]Finding, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Size() > MaxFileSize {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isBinary(data) {
		return nil, nil
	}

	hits := s.detector.DetectBytes(data)
	findings := make([]Finding, 0, len(hits))
	for _, h := range hits {
		findings = append(findings, Finding{
			File:        path,
			Line:        h.StartLine + 1, // gitleaks is 0-indexed
			Column:      h.StartColumn,
			RuleID:      h.RuleID,
			Description: h.Description,
		})
	}
	return findings, nil
}

// isBinary applies git's heuristic: a NUL byte in the first 8000 bytes.
func isBinary(data []byte) bool {
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.IndexByte(data, 0) >= 0
}
