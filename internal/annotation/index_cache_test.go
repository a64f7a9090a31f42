package annotation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func writeTestGTF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.gtf")
	require.NoError(t, os.WriteFile(path, []byte(testGTF), 0644))
	return path
}

func TestIndexCache_RoundTrip(t *testing.T) {
	gtfPath := writeTestGTF(t)
	fp, err := StatFile(gtfPath)
	require.NoError(t, err)

	s, err := NewGTFLoader(gtfPath).Load()
	require.NoError(t, err)

	ic := NewIndexCache(filepath.Join(t.TempDir(), "cache"))
	assert.False(t, ic.Valid(fp))
	require.NoError(t, ic.Write(s, fp))
	assert.True(t, ic.Valid(fp))

	loaded, err := ic.Load()
	require.NoError(t, err)
	assert.Equal(t, s.GeneCount(), loaded.GeneCount())
	assert.Equal(t, s.TranscriptCount(), loaded.TranscriptCount())

	want, err := s.TranscriptsOf("ENSG00000133703")
	require.NoError(t, err)
	got, err := loaded.TranscriptsOf("ENSG00000133703")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestIndexCache_InvalidatedBySourceChange(t *testing.T) {
	gtfPath := writeTestGTF(t)
	fp, err := StatFile(gtfPath)
	require.NoError(t, err)

	s, err := NewGTFLoader(gtfPath).Load()
	require.NoError(t, err)

	ic := NewIndexCache(t.TempDir())
	require.NoError(t, ic.Write(s, fp))

	changed := fp
	changed.ModTime = fp.ModTime.Add(time.Second)
	assert.False(t, ic.Valid(changed))

	changed = fp
	changed.Size++
	assert.False(t, ic.Valid(changed))

	ic.Clear()
	assert.False(t, ic.Valid(fp))
}

func TestLoadOrBuild(t *testing.T) {
	gtfPath := writeTestGTF(t)
	dir := t.TempDir()

	s, hit, err := LoadOrBuild(gtfPath, dir, nil)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, s.GeneCount())

	s, hit, err = LoadOrBuild(gtfPath, dir, nil)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, s.GeneCount())

	// Caching disabled
	_, hit, err = LoadOrBuild(gtfPath, "", nil)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestLoadOrBuild_CacheWriteFailure(t *testing.T) {
	gtfPath := writeTestGTF(t)
	dir := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0644))

	core, logs := observer.New(zapcore.WarnLevel)
	s, hit, err := LoadOrBuild(gtfPath, dir, zap.New(core))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, s.GeneCount())

	entries := logs.FilterMessage("annotation cache not written").All()
	require.Len(t, entries, 1)
	assert.Equal(t, dir, entries[0].ContextMap()["dir"])
}
