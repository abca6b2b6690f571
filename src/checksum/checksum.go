// Package checksum writes md5 and sha256 sidecar files for release assets.
package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Algorithm names a digest and its sidecar extension.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
)

func (a Algorithm) new() hash.Hash {
	if a == SHA256 {
		return sha256.New()
	}
	return md5.New()
}

// Sidecar is a written checksum file.
type Sidecar struct {
	Algorithm Algorithm
	Path      string
	Sum       string
}

// Sum computes the hex digest of the file at path.
func Sum(path string, alg Algorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := alg.new()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", filepath.Base(path), err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Write computes the requested digests of path concurrently and writes each
// next to it as "<path>.<alg>", in the "<sum>  <name>" format md5sum and
// sha256sum -c accept.
func Write(ctx context.Context, path string, algs ...Algorithm) ([]Sidecar, error) {
	out := make([]Sidecar, len(algs))

	g, _ := errgroup.WithContext(ctx)
	for i, alg := range algs {
		g.Go(func() error {
			sum, err := Sum(path, alg)
			if err != nil {
				return err
			}
			side := path + "." + string(alg)
			line := fmt.Sprintf("%s  %s\n", sum, filepath.Base(path))
			if err := os.WriteFile(side, []byte(line), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", filepath.Base(side), err)
			}
			out[i] = Sidecar{Algorithm: alg, Path: side, Sum: sum}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
