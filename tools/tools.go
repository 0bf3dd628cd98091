// Package tools locates the vstest.console runner and unpacks the runner
// archive shipped next to the action when the runner is not present yet.
package tools

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

const (
	// ArchiveName is the runner archive expected in the tools directory.
	ArchiveName = "win-x64.zip"

	// LocationMethod selects an explicit runner location over a bundled version.
	LocationMethod = "location"

	vsTest140 = "win-x64/VsTest/v140/vstest.console.exe"
	vsTest150 = "win-x64/VsTest/v150/Common7/IDE/Extensions/TestPlatform/vstest.console.exe"
	vsTest160 = "win-x64/VsTest/v160/Common7/IDE/Extensions/TestPlatform/vstest.console.exe"
)

// VsTestPath resolves the runner executable. An explicit location wins when
// method is "location" (any case); otherwise the bundled runner for version is
// used, defaulting to the newest.
func VsTestPath(toolsDir, method, location, version string) string {
	if strings.EqualFold(method, LocationMethod) {
		return location
	}
	switch version {
	case "14.0":
		return filepath.Join(toolsDir, filepath.FromSlash(vsTest140))
	case "15.0":
		return filepath.Join(toolsDir, filepath.FromSlash(vsTest150))
	default:
		return filepath.Join(toolsDir, filepath.FromSlash(vsTest160))
	}
}

// Exists reports whether path names an existing file or directory.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Unpacker makes the bundled runner available on disk.
type Unpacker struct {
	log log.Logger
}

func NewUnpacker(logger log.Logger) *Unpacker {
	return &Unpacker{log: logger}
}

// EnsureUnpacked unpacks archive into dest unless runnerPath already exists.
// It reports whether the archive was unpacked.
func (u *Unpacker) EnsureUnpacked(ctx context.Context, runnerPath, archive, dest string) (bool, error) {
	exists, err := Exists(runnerPath)
	if err != nil {
		return false, fmt.Errorf("failed to check runner %s: %w", runnerPath, err)
	}
	if exists {
		u.log.Info("Test tool exists already, skipping unpacking", "runner", runnerPath)
		return false, nil
	}

	u.log.Info("Unpacking test tools", "archive", archive, "dest", dest)
	if err := u.Unpack(ctx, archive, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Unpack extracts the zip archive into dest. Entries resolving outside dest
// are rejected.
func (u *Unpacker) Unpack(ctx context.Context, archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	defer r.Close()

	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path for '%s': %w", dest, err)
	}
	if err := os.MkdirAll(absDest, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", absDest, err)
	}

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extract(f, absDest); err != nil {
			return err
		}
	}
	u.log.Debug("Archive unpacked", "archive", archive, "entries", len(r.File))
	return nil
}

func extract(f *zip.File, dest string) error {
	target := filepath.Join(dest, filepath.FromSlash(f.Name))
	if target != dest && !strings.HasPrefix(target, dest+string(filepath.Separator)) {
		return fmt.Errorf("archive entry %q escapes destination", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}
