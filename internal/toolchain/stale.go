package toolchain

import (
	"fmt"
	"os"
)

// isStale reports whether output must be (re)built: it is stale when it does
// not exist or when any input is newer. This mtime comparison is the only
// build state; nothing is persisted across invocations beyond the artifact
// files themselves.
func isStale(output string, inputs []string) (bool, error) {
	outInfo, err := os.Stat(output)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("stat %q: %w", output, err)
	}
	outTime := outInfo.ModTime()

	for _, in := range inputs {
		inInfo, err := os.Stat(in)
		if err != nil {
			return false, fmt.Errorf("stat input %q: %w", in, err)
		}
		if inInfo.ModTime().After(outTime) {
			return true, nil
		}
	}
	return false, nil
}

// checkInputsExist verifies all paths exist, returning a descriptive error
// naming the first missing one.
func checkInputsExist(kind string, paths []string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("missing %s: %s", kind, p)
			}
			return fmt.Errorf("stat %s %q: %w", kind, p, err)
		}
	}
	return nil
}
