// Package engine wires the format detectors, decoders and rewriters into
// the inspect/sanitize/edit/batch entry points, including the
// verify-and-commit protocol that keeps originals intact on failure.
package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/jvillegas/metasweep/internal/utils"
)

// tempPathFor builds a timestamp-qualified sibling path for the rewrite
// artifact.
func tempPathFor(path string) string {
	return fmt.Sprintf("%s.msw-%d.tmp", path, time.Now().UnixNano())
}

// commitRewrite runs write and verify against a temp path next to the
// original, then atomically renames it over the original. Any failure
// deletes the temp artifact and leaves the original untouched.
func commitRewrite(path string, write func(tmp string) error, verify func(tmp string) error) error {
	tmp := tempPathFor(path)

	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := verify(tmp); err != nil {
		os.Remove(tmp)
		utils.Log.WithError(err).Error("Verification failed, original left untouched")
		return err
	}

	// Carry the original's permission bits onto the replacement.
	if info, err := os.Stat(path); err == nil {
		os.Chmod(tmp, info.Mode().Perm())
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// writeVerified is the sibling-destination variant: the artifact is
// verified in place at dest instead of replacing the original.
func writeVerified(dest string, write func(string) error, verify func(string) error) error {
	if err := write(dest); err != nil {
		os.Remove(dest)
		return err
	}
	if err := verify(dest); err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}
