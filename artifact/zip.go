package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// zipEntry maps a file on disk to its path inside the archive.
type zipEntry struct {
	source string
	name   string
}

// zipEntries validates that every file sits below rootDirectory and computes
// its slash-separated archive path.
func zipEntries(files []string, rootDirectory string) ([]zipEntry, error) {
	root, err := filepath.Abs(rootDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory %s: %w", rootDirectory, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("the provided rootDirectory %s does not exist: %w", rootDirectory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("the provided rootDirectory %s is not a valid directory", rootDirectory)
	}

	entries := make([]zipEntry, 0, len(files))
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", file, err)
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("the rootDirectory: %s is not a parent directory of the file: %s", rootDirectory, file)
		}
		entries = append(entries, zipEntry{source: abs, name: filepath.ToSlash(rel)})
	}
	return entries, nil
}

// writeZip builds the archive in memory.
func writeZip(ctx context.Context, entries []zipEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := addFile(zw, e); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

func addFile(zw *zip.Writer, e zipEntry) error {
	f, err := os.Open(e.source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", e.source, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", e.source, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create archive header for %s: %w", e.source, err)
	}
	header.Name = e.name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", e.name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s to archive: %w", e.name, err)
	}
	return nil
}
