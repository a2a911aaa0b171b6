package digester

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// CalculateDigest computes the SHA256 hex digest of the file at
// path. Returns empty string with no error if the file does not
// exist.
func CalculateDigest(path string) (result string, retErr error) {
	const errCtx = "calculating digest"

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}

	fi, err := os.Open(path) //nolint:gosec // path is caller-provided by design
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	defer func() {
		if closeErr := fi.Close(); closeErr != nil && retErr == nil {
			retErr = fmt.Errorf("%s: %w", errCtx, closeErr)
		}
	}()

	ha := sha256.New()

	if _, err := io.Copy(ha, fi); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return hex.EncodeToString(ha.Sum(nil)), nil
}

// Snapshot computes digests for the given files relative to
// root. Missing files get an empty digest so a later Diff
// reports file creation as a change.
func Snapshot(
	root string,
	files []string,
) (map[string]string, error) {
	const errCtx = "snapshotting digests"

	snap := make(map[string]string, len(files))

	for _, f := range files {
		dg, err := CalculateDigest(
			filepath.Join(root, f),
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %s: %w", errCtx, f, err,
			)
		}

		snap[f] = dg
	}

	return snap, nil
}

// Diff returns the sorted list of files whose digest differs
// between the two snapshots. Files present in only one
// snapshot count as changed.
func Diff(before, after map[string]string) []string {
	var changed []string

	for f, dg := range after {
		if before[f] != dg {
			changed = append(changed, f)
		}
	}

	for f := range before {
		if _, ok := after[f]; !ok {
			changed = append(changed, f)
		}
	}

	sort.Strings(changed)

	return changed
}
