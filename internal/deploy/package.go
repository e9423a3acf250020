package deploy

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"
)

// archiveEpoch is stamped on every archive entry so that identical trees
// produce identical archives.
var archiveEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	dirMode  fs.FileMode = 0o755
	fileMode fs.FileMode = 0o644
	execMode fs.FileMode = 0o755
)

// Archive describes a packaged configuration archive.
type Archive struct {
	Path    string
	Name    string
	Entries int
	Size    int64
	// Digest is the hex BLAKE3 digest of the archive bytes.
	Digest string
}

// ArchiveName returns the configuration archive file name for a resource.
func ArchiveName(resourceName, ext string) string {
	return resourceName + "_config." + ext
}

// Package writes the tree below srcDir into a zip archive at dest with
// every entry rooted at root/. Entries are sorted, timestamps are fixed and
// modes are normalized, so the same tree always yields the same bytes.
func Package(srcDir, root, dest string) (*Archive, error) {
	var entries []string
	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == srcDir {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		entries = append(entries, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", srcDir, err)
	}
	sort.Strings(entries)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive %s: %w", dest, err)
	}
	defer out.Close()

	hasher := blake3.New()
	counter := &countingWriter{}
	zw := zip.NewWriter(io.MultiWriter(out, hasher, counter))

	if err := addDir(zw, root+"/"); err != nil {
		return nil, err
	}
	for _, rel := range entries {
		local := filepath.Join(srcDir, filepath.FromSlash(rel))
		info, err := os.Stat(local)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", local, err)
		}
		name := path.Join(root, rel)
		if info.IsDir() {
			err = addDir(zw, name+"/")
		} else {
			err = addFile(zw, name, local)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive %s: %w", dest, err)
	}

	return &Archive{
		Path:    dest,
		Name:    filepath.Base(dest),
		Entries: len(entries) + 1,
		Size:    counter.n,
		Digest:  hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func addDir(zw *zip.Writer, name string) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store, Modified: archiveEpoch}
	hdr.SetMode(fs.ModeDir | dirMode)
	if _, err := zw.CreateHeader(hdr); err != nil {
		return fmt.Errorf("failed to add directory %s: %w", name, err)
	}
	return nil
}

func addFile(zw *zip.Writer, name, local string) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: archiveEpoch}
	hdr.SetMode(entryMode(name))

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", local, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to compress %s: %w", local, err)
	}
	return nil
}

// entryMode marks shell and batch scripts executable.
func entryMode(name string) fs.FileMode {
	switch strings.ToLower(path.Ext(name)) {
	case ".sh", ".bat", ".cmd":
		return execMode
	default:
		return fileMode
	}
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
