// Package artifact persists run artifacts beyond the run workspace so
// notification attachments and scan reports outlive workspace teardown.
package artifact

import (
	"context"
	"os"
)

// Store persists artifact files under a run-scoped key.
type Store interface {
	// Put stores the file at path under runID/name and returns the
	// stored location.
	Put(ctx context.Context, runID, name, path string) (string, error)
}

// PersistAll stores every file artifact in the map, returning name ->
// location. Directory artifacts (checked-out source trees) are skipped.
// The first failure aborts: remote persistence is best-effort at the call
// site, not silently partial here.
func PersistAll(ctx context.Context, store Store, runID string, artifacts map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(artifacts))
	for name, path := range artifacts {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		loc, err := store.Put(ctx, runID, name, path)
		if err != nil {
			return out, err
		}
		out[name] = loc
	}
	return out, nil
}
