package repair_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrun/internal/canon"
	"studyrun/internal/record"
	"studyrun/internal/repair"
)

func put(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRenamesDriftedHash(t *testing.T) {
	dir := t.TempDir()
	header := "-n=3 -fit=x"
	stale := canon.MD5.Hash(header)
	fresh := canon.SHA256.Hash(header)
	require.NotEqual(t, stale, fresh)

	content := "# " + header + "\nout\n" + record.SentinelLine
	old := put(t, dir, "exp-"+stale+"-07", content)

	results, err := repair.Dir(context.Background(), dir, repair.Options{Scheme: canon.SHA256})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, repair.Renamed, r.Outcome)
	assert.Equal(t, filepath.Join(dir, "exp-"+fresh+"-07"), r.NewPath)

	_, err = os.Stat(old)
	assert.ErrorIs(t, err, os.ErrNotExist)
	data, err := os.ReadFile(r.NewPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestSignedSampleFieldIsNotRewritten(t *testing.T) {
	dir := t.TempDir()
	header := "-n=3"
	path := put(t, dir, "exp-"+canon.MD5.Hash(header)+"-+7", "# "+header+"\n")

	results, err := repair.Dir(context.Background(), dir, repair.Options{Scheme: canon.SHA256})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, repair.Failed, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, record.ErrBadName)
	assert.FileExists(t, path)
}

func TestLeavesConsistentFilesAlone(t *testing.T) {
	dir := t.TempDir()
	header := "-b=2 -a=1"
	path := put(t, dir, "exp-"+canon.SHA256.Hash("-a=1 -b=2")+"-00", "# "+header+"\n")

	results, err := repair.Dir(context.Background(), dir, repair.Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, repair.Unchanged, results[0].Outcome)
	assert.FileExists(t, path)
}

func TestReportsMalformedFilesWithoutRenaming(t *testing.T) {
	dir := t.TempDir()
	garbled := put(t, dir, "exp-"+canon.SHA256.Hash("x")+"-01", "no header here\n# DONE\n")
	empty := put(t, dir, "exp-0123abcd-02", "")
	badName := put(t, dir, "notes.txt", "# -a\n")

	results, err := repair.Dir(context.Background(), dir, repair.Options{Scheme: canon.SHA256})
	require.NoError(t, err)
	require.Len(t, results, 3)

	byPath := make(map[string]repair.Result)
	for _, r := range results {
		byPath[r.Path] = r
		assert.Equal(t, repair.Failed, r.Outcome, r.Path)
		assert.Empty(t, r.NewPath)
	}
	assert.ErrorIs(t, byPath[garbled].Err, record.ErrMalformedHeader)
	assert.ErrorIs(t, byPath[empty].Err, record.ErrMalformedHeader)
	assert.ErrorIs(t, byPath[badName].Err, record.ErrBadName)

	for _, p := range []string{garbled, empty, badName} {
		assert.FileExists(t, p)
	}
}

func TestDryRunDoesNotRename(t *testing.T) {
	dir := t.TempDir()
	old := put(t, dir, "exp-"+canon.MD5.Hash("-a")+"-00", "# -a\n")

	results, err := repair.Dir(context.Background(), dir, repair.Options{Scheme: canon.SHA256, DryRun: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, repair.Renamed, results[0].Outcome)
	assert.FileExists(t, old)
	assert.NoFileExists(t, results[0].NewPath)
}

func TestRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	fresh := put(t, dir, "exp-"+canon.SHA256.Hash("-a")+"-00", "# -a\nfirst\n")
	stale := put(t, dir, "exp-"+canon.MD5.Hash("-a")+"-00", "# -a\nsecond\n")

	results, err := repair.Dir(context.Background(), dir, repair.Options{Scheme: canon.SHA256})
	require.NoError(t, err)
	tally := repair.Tally(results)
	assert.Equal(t, 1, tally[repair.Unchanged])
	assert.Equal(t, 1, tally[repair.Failed])

	for _, r := range results {
		if r.Path == stale {
			assert.ErrorIs(t, r.Err, repair.ErrTargetExists)
		}
	}
	data, err := os.ReadFile(fresh)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.FileExists(t, stale)
}

func TestExcludeAndSubdirectories(t *testing.T) {
	dir := t.TempDir()
	put(t, dir, "README.md", "docs\n")
	put(t, dir, "run.log", "log\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))
	kept := put(t, dir, "exp-"+canon.SHA256.Hash("-a")+"-00", "# -a\n")

	results, err := repair.Dir(context.Background(), dir, repair.Options{Exclude: []string{"*.md", "*.{log,tmp}"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, kept, results[0].Path)
}

func TestInvalidExcludePattern(t *testing.T) {
	_, err := repair.Dir(context.Background(), t.TempDir(), repair.Options{Exclude: []string{"[unterminated"}})
	require.Error(t, err)
}

func TestMissingDirectory(t *testing.T) {
	_, err := repair.Dir(context.Background(), filepath.Join(t.TempDir(), "nope"), repair.Options{})
	require.Error(t, err)
}

func TestOutcomeCodes(t *testing.T) {
	assert.Equal(t, "S", repair.Unchanged.Code())
	assert.Equal(t, "R", repair.Renamed.Code())
	assert.Equal(t, "E", repair.Failed.Code())
	assert.Equal(t, "error", repair.Failed.String())
}
