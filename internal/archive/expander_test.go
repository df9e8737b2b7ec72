package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"whisper-stream/internal/domain"
	"whisper-stream/internal/metrics"
)

type zipEntry struct {
	name string
	body string
}

// writeZip builds a stored (uncompressed) archive at path.
func writeZip(t *testing.T, path string, entries []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: entry.name, Method: zip.Store})
		require.NoError(t, err)
		_, err = w.Write([]byte(entry.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return buf.Bytes()
}

// TestExpandExtractsTree creates directories and files in archive order.
func TestExpandExtractsTree(t *testing.T) {
	root := t.TempDir()
	archivePath := filepath.Join(root, "ggml-base.en-encoder.mlmodelc.zip")
	writeZip(t, archivePath, []zipEntry{
		{name: "ggml-base.en-encoder.mlmodelc/"},
		{name: "ggml-base.en-encoder.mlmodelc/weights/", body: ""},
		{name: "ggml-base.en-encoder.mlmodelc/weights/weight.bin", body: "weights"},
		{name: "ggml-base.en-encoder.mlmodelc/model.mil", body: "program"},
	})

	dest := filepath.Join(root, "cache")
	require.NoError(t, New(nil, nil).Expand(archivePath, dest))

	data, err := os.ReadFile(filepath.Join(dest, "ggml-base.en-encoder.mlmodelc", "weights", "weight.bin"))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
	assert.FileExists(t, filepath.Join(dest, "ggml-base.en-encoder.mlmodelc", "model.mil"))
	assert.FileExists(t, archivePath, "successful expansion leaves the archive to the caller")
}

// TestExpandSkipsTraversalEntries never writes outside the destination.
func TestExpandSkipsTraversalEntries(t *testing.T) {
	root := t.TempDir()
	archivePath := filepath.Join(root, "evil.zip")
	writeZip(t, archivePath, []zipEntry{
		{name: "../escape.txt", body: "pwned"},
		{name: "nested/../../escape2.txt", body: "pwned"},
		{name: "/absolute.txt", body: "pwned"},
		{name: "safe/file.txt", body: "ok"},
	})

	core, logs := observer.New(zapcore.WarnLevel)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	dest := filepath.Join(root, "dest")

	require.NoError(t, New(zap.New(core), m).Expand(archivePath, dest))

	assert.NoFileExists(t, filepath.Join(root, "escape.txt"))
	assert.NoFileExists(t, filepath.Join(root, "escape2.txt"))
	assert.NoFileExists(t, filepath.Join(string(filepath.Separator), "absolute.txt"))
	assert.FileExists(t, filepath.Join(dest, "safe", "file.txt"))
	assert.Equal(t, 3, logs.FilterMessage("skipping archive entry outside destination").Len())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EntriesSkipped))
}

// TestExpandCorruptArchiveRollsBack removes the archive and destination.
func TestExpandCorruptArchiveRollsBack(t *testing.T) {
	root := t.TempDir()
	archivePath := filepath.Join(root, "broken.zip")
	require.NoError(t, os.WriteFile(archivePath, []byte("this is not a zip file"), 0o644))
	dest := filepath.Join(root, "dest")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "partial"), 0o755))

	err := New(nil, nil).Expand(archivePath, dest)

	var archiveErr *domain.ArchiveError
	require.True(t, errors.As(err, &archiveErr), "err = %v", err)
	assert.Equal(t, archivePath, archiveErr.Path)
	assert.NoFileExists(t, archivePath)
	assert.NoDirExists(t, dest)
}

// TestExpandChecksumFailureRemovesPartialOutput rolls back after some
// entries were already written.
func TestExpandChecksumFailureRemovesPartialOutput(t *testing.T) {
	root := t.TempDir()
	archivePath := filepath.Join(root, "encoder.zip")
	raw := writeZip(t, archivePath, []zipEntry{
		{name: "enc/first.bin", body: "first-entry-ok"},
		{name: "enc/second.bin", body: "SECOND-ENTRY-PAYLOAD"},
	})

	idx := bytes.Index(raw, []byte("SECOND-ENTRY-PAYLOAD"))
	require.Positive(t, idx)
	raw[idx] = 'X'
	require.NoError(t, os.WriteFile(archivePath, raw, 0o644))

	artifactDir := filepath.Join(root, "enc")
	err := New(nil, nil).ExpandRequest(Request{
		ArchivePath: archivePath,
		DestDir:     root,
		ArtifactDir: artifactDir,
	})

	var archiveErr *domain.ArchiveError
	require.True(t, errors.As(err, &archiveErr), "err = %v", err)
	assert.Equal(t, "enc/second.bin", archiveErr.Entry)
	assert.ErrorIs(t, err, zip.ErrChecksum)
	assert.NoFileExists(t, archivePath)
	assert.NoDirExists(t, artifactDir)
	assert.DirExists(t, root, "only the artifact directory is rolled back")
}

// TestExpandCleanupFailureKeepsOriginalError attempts both removals and
// only logs their failures.
func TestExpandCleanupFailureKeepsOriginalError(t *testing.T) {
	root := t.TempDir()
	archivePath := filepath.Join(root, "broken.zip")
	require.NoError(t, os.WriteFile(archivePath, []byte("garbage"), 0o644))
	dest := filepath.Join(root, "dest")

	var removed, removedAll []string
	core, logs := observer.New(zapcore.WarnLevel)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	expander := NewForTests(zap.New(core), m, os.MkdirAll, os.OpenFile,
		func(path string) error {
			removed = append(removed, path)
			return errors.New("permission denied")
		},
		func(path string) error {
			removedAll = append(removedAll, path)
			return errors.New("device busy")
		},
	)

	err := expander.Expand(archivePath, dest)
	var archiveErr *domain.ArchiveError
	require.True(t, errors.As(err, &archiveErr), "err = %v", err)
	assert.NotContains(t, err.Error(), "permission denied")

	assert.Equal(t, []string{archivePath}, removed)
	assert.Equal(t, []string{dest}, removedAll)
	assert.Equal(t, 2, logs.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rollbacks))
}

// TestExpandWriteFailureIsIOError distinguishes filesystem errors.
func TestExpandWriteFailureIsIOError(t *testing.T) {
	root := t.TempDir()
	archivePath := filepath.Join(root, "ok.zip")
	writeZip(t, archivePath, []zipEntry{{name: "a/b.txt", body: "b"}})

	expander := NewForTests(nil, nil,
		func(string, os.FileMode) error { return errors.New("read-only filesystem") },
		os.OpenFile, os.Remove, os.RemoveAll,
	)
	err := expander.Expand(archivePath, filepath.Join(root, "dest"))

	var ioErr *domain.IOError
	require.True(t, errors.As(err, &ioErr), "err = %v", err)
	assert.NoFileExists(t, archivePath)
}

// TestEnclosedPath checks the entry name guard directly.
func TestEnclosedPath(t *testing.T) {
	base := filepath.Join(string(filepath.Separator)+"tmp", "root")

	cases := []struct {
		name string
		ok   bool
	}{
		{"file.txt", true},
		{"dir/", true},
		{"dir/sub/file.txt", true},
		{"dir/../file.txt", true},
		{"..", false},
		{"../x", false},
		{"a/../../x", false},
		{"/etc/passwd", false},
		{`..\x`, false},
		{"", false},
		{".", false},
		{"bad\x00name", false},
		{"..dots-in-name", true},
	}
	for _, tc := range cases {
		_, ok := enclosedPath(base, tc.name)
		assert.Equalf(t, tc.ok, ok, "enclosedPath(%q)", tc.name)
	}
}

// TestIsWithinBaseDirRejectsTraversal validates archive path traversal guard.
func TestIsWithinBaseDirRejectsTraversal(t *testing.T) {
	base := filepath.Join(string(filepath.Separator)+"tmp", "root")
	assert.False(t, isWithinBaseDir(base, filepath.Join(base, "..", "escape.txt")))
	assert.True(t, isWithinBaseDir(base, filepath.Join(base, "inner", "file")))
	assert.True(t, isWithinBaseDir(base, base))
}
