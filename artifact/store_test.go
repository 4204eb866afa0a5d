package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirStore_Put(t *testing.T) {
	root := t.TempDir()
	store, err := NewDirStore(filepath.Join(root, "artifacts"))
	require.NoError(t, err)

	src := filepath.Join(root, "trivy-report.txt")
	require.NoError(t, os.WriteFile(src, []byte("no vulnerabilities"), 0644))

	loc, err := store.Put(context.Background(), "run-1", "trivy-report", src)
	require.NoError(t, err)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "no vulnerabilities", string(data))
	assert.Contains(t, loc, "run-1")
}

func TestNewDirStore_RequiresRoot(t *testing.T) {
	_, err := NewDirStore("")
	require.Error(t, err)
}

type recordingStore struct {
	puts map[string]string
}

func (r *recordingStore) Put(ctx context.Context, runID, name, path string) (string, error) {
	if r.puts == nil {
		r.puts = make(map[string]string)
	}
	r.puts[name] = path
	return "stored://" + name, nil
}

func TestPersistAll_SkipsDirectoriesAndMissing(t *testing.T) {
	ws := t.TempDir()
	report := filepath.Join(ws, "report.txt")
	require.NoError(t, os.WriteFile(report, []byte("x"), 0644))
	srcDir := filepath.Join(ws, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0755))

	store := &recordingStore{}
	out, err := PersistAll(context.Background(), store, "run-1", map[string]string{
		"report": report,
		"source": srcDir,
		"gone":   filepath.Join(ws, "missing.txt"),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"report": "stored://report"}, out)
	assert.Len(t, store.puts, 1)
}
