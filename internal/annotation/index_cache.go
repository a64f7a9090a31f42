package annotation

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pierrec/lz4"
	"go.uber.org/zap"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// IndexCache manages an lz4-compressed gob snapshot of a parsed annotation.
// Files are stored in the cache directory:
//
//	{dir}/annotation.gob.lz4       (serialized genes and transcripts)
//	{dir}/annotation.gob.lz4.meta  (source GTF fingerprint)
type IndexCache struct {
	dir string
}

// NewIndexCache creates an index cache for the given directory.
func NewIndexCache(dir string) *IndexCache {
	return &IndexCache{dir: dir}
}

// Path returns the location of the serialized annotation.
func (ic *IndexCache) Path() string {
	return filepath.Join(ic.dir, "annotation.gob.lz4")
}

func (ic *IndexCache) metaPath() string {
	return ic.Path() + ".meta"
}

// Valid checks whether the cached annotation was built from the given GTF.
func (ic *IndexCache) Valid(gtf FileFingerprint) bool {
	meta, err := ic.readMeta()
	if err != nil {
		return false
	}

	checks := []struct{ key, val string }{
		{"gtf_path", gtf.Path},
		{"gtf_size", strconv.FormatInt(gtf.Size, 10)},
		{"gtf_modtime", gtf.ModTime.UTC().Format(time.RFC3339Nano)},
	}
	for _, c := range checks {
		if meta[c.key] != c.val {
			return false
		}
	}

	if _, err := os.Stat(ic.Path()); err != nil {
		return false
	}
	return true
}

// Load reads the serialized annotation into a new store.
func (ic *IndexCache) Load() (*Store, error) {
	f, err := os.Open(ic.Path())
	if err != nil {
		return nil, fmt.Errorf("open annotation cache: %w", err)
	}
	defer f.Close()

	var genes []*Gene
	if err := gob.NewDecoder(lz4.NewReader(f)).Decode(&genes); err != nil {
		return nil, fmt.Errorf("decode annotation cache: %w", err)
	}

	s := NewStore()
	for _, g := range genes {
		s.AddGene(g)
	}
	return s, nil
}

// Write serializes all genes of the store to disk.
func (ic *IndexCache) Write(s *Store, gtf FileFingerprint) error {
	if err := os.MkdirAll(ic.dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	f, err := os.Create(ic.Path())
	if err != nil {
		return fmt.Errorf("create annotation cache: %w", err)
	}

	zw := lz4.NewWriter(f)
	if err := gob.NewEncoder(zw).Encode(s.Genes()); err != nil {
		f.Close()
		os.Remove(ic.Path())
		return fmt.Errorf("encode annotation cache: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(ic.Path())
		return fmt.Errorf("flush annotation cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close annotation cache: %w", err)
	}

	return ic.writeMeta(gtf)
}

// Clear removes the cached files.
func (ic *IndexCache) Clear() {
	os.Remove(ic.Path())
	os.Remove(ic.metaPath())
}

func (ic *IndexCache) writeMeta(gtf FileFingerprint) error {
	lines := []string{
		"gtf_path=" + gtf.Path,
		"gtf_size=" + strconv.FormatInt(gtf.Size, 10),
		"gtf_modtime=" + gtf.ModTime.UTC().Format(time.RFC3339Nano),
		"created_at=" + time.Now().UTC().Format(time.RFC3339),
		"",
	}
	return os.WriteFile(ic.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

func (ic *IndexCache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(ic.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}

// LoadOrBuild returns the annotation for gtfPath, using the cache in dir when
// it matches the GTF fingerprint and rebuilding it otherwise. An empty dir
// disables caching. The returned bool reports a cache hit. A cache that cannot
// be written is logged and the parsed annotation is still returned.
func LoadOrBuild(gtfPath, dir string, logger *zap.Logger) (*Store, bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fp, err := StatFile(gtfPath)
	if err != nil {
		return nil, false, fmt.Errorf("stat GTF: %w", err)
	}

	var ic *IndexCache
	if dir != "" {
		ic = NewIndexCache(dir)
		if ic.Valid(fp) {
			if s, err := ic.Load(); err == nil {
				return s, true, nil
			}
			ic.Clear()
		}
	}

	s, err := NewGTFLoader(gtfPath).Load()
	if err != nil {
		return nil, false, err
	}
	if ic != nil {
		if err := ic.Write(s, fp); err != nil {
			logger.Warn("annotation cache not written",
				zap.String("dir", dir),
				zap.Error(err))
		}
	}
	return s, false, nil
}
