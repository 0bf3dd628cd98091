// Package search resolves newline-separated glob patterns to the files they
// match and the common root directory those files should be addressed from.
//
// Pattern syntax is doublestar's: `*` and `?` stay within one path segment,
// `**` spans any number of segments, `[...]` and `{a,b}` are supported. A line
// starting with `!` excludes what it matches from the result.
package search

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ethereum/go-ethereum/log"
)

// Options controls how patterns are matched against the filesystem.
type Options struct {
	// FollowSymbolicLinks descends into symlinked directories and reports
	// symlinked files by their link path.
	FollowSymbolicLinks bool
	// ImplicitDescendants makes a pattern that matches a directory match every
	// file below it.
	ImplicitDescendants bool
	// OmitBrokenSymbolicLinks skips dangling links instead of failing. Only
	// relevant with FollowSymbolicLinks.
	OmitBrokenSymbolicLinks bool
	// BaseDir anchors relative patterns. Empty means the process working
	// directory.
	BaseDir string
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		FollowSymbolicLinks:     false,
		ImplicitDescendants:     true,
		OmitBrokenSymbolicLinks: false,
	}
}

// SearchResult is the outcome of a search.
type SearchResult struct {
	FilesToUpload []string
	RootDirectory string
}

// ErrBrokenSymlink is returned for a dangling link met while following links.
var ErrBrokenSymlink = errors.New("broken symbolic link")

// FindFilesToUpload expands every pattern in searchPath (one per line) and
// returns the matched files in discovery order without duplicates. A pattern
// list that matches nothing is not an error.
func FindFilesToUpload(ctx context.Context, searchPath string, opts *Options) (*SearchResult, error) {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}

	patterns, excludes, err := parsePatterns(searchPath, o.BaseDir)
	if err != nil {
		return nil, err
	}
	result := &SearchResult{FilesToUpload: []string{}}
	if len(patterns) == 0 {
		return result, nil
	}

	seen := make(map[string]struct{})
	for _, p := range patterns {
		log.Debug("Searching pattern", "pattern", p.pattern, "base", p.base)
		w := &walker{ctx: ctx, opts: o, pattern: p}
		err := w.run(func(path string) {
			if isExcluded(path, excludes, o.ImplicitDescendants) {
				log.Debug("Skipping excluded match", "path", path)
				return
			}
			key := dedupKey(path)
			if _, ok := seen[key]; ok {
				log.Debug("Skipping duplicate match", "path", path)
				return
			}
			seen[key] = struct{}{}
			result.FilesToUpload = append(result.FilesToUpload, path)
		})
		if err != nil {
			return nil, err
		}
	}

	searchPaths := make([]string, 0, len(patterns))
	for _, p := range patterns {
		searchPaths = append(searchPaths, p.searchPath)
	}
	result.RootDirectory = rootDirectory(searchPaths, result.FilesToUpload)

	log.Debug("Search completed", "files", len(result.FilesToUpload), "root", result.RootDirectory)
	return result, nil
}

// pattern is one parsed line of the search input.
type pattern struct {
	// raw absolute pattern, slash separated
	pattern string
	// base is the directory the walk starts from (OS separators)
	base string
	// rel is the pattern relative to base, slash separated
	rel string
	// searchPath is the literal, wildcard-free prefix of the pattern
	searchPath string
	recursive  bool
	depth      int
}

// parsePatterns splits the input into include patterns and the absolute,
// slash separated exclude patterns. Relative lines are anchored at baseDir.
func parsePatterns(searchPath string, baseDir string) ([]pattern, []string, error) {
	var (
		patterns []pattern
		excludes []string
	)
	seen := make(map[string]struct{})
	for _, line := range strings.Split(searchPath, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		negations := 0
		for strings.HasPrefix(line, "!") {
			line = strings.TrimPrefix(line, "!")
			negations++
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if negations%2 == 1 {
			slashed, err := absPattern(line, baseDir)
			if err != nil {
				return nil, nil, err
			}
			excludes = append(excludes, slashed)
			continue
		}

		p, err := parsePattern(line, baseDir)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := seen[p.pattern]; ok {
			continue
		}
		seen[p.pattern] = struct{}{}
		patterns = append(patterns, p)
	}
	return patterns, excludes, nil
}

// absPattern resolves line to an absolute, slash separated, valid pattern.
func absPattern(line string, baseDir string) (string, error) {
	if baseDir != "" && !filepath.IsAbs(line) {
		line = filepath.Join(baseDir, line)
	}
	abs, err := filepath.Abs(line)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for pattern '%s': %w", line, err)
	}
	slashed := filepath.ToSlash(abs)
	if !doublestar.ValidatePattern(slashed) {
		return "", fmt.Errorf("invalid search pattern '%s': %w", line, doublestar.ErrBadPattern)
	}
	return slashed, nil
}

func parsePattern(line string, baseDir string) (pattern, error) {
	slashed, err := absPattern(line, baseDir)
	if err != nil {
		return pattern{}, err
	}
	abs := filepath.FromSlash(slashed)

	base, rel := doublestar.SplitPattern(slashed)
	searchPath := abs
	if hasMeta(rel) {
		searchPath = filepath.FromSlash(base)
	}

	depth := 0
	if rel != "" {
		depth = len(strings.Split(rel, "/"))
	}
	return pattern{
		pattern:    slashed,
		base:       filepath.FromSlash(base),
		rel:        rel,
		searchPath: filepath.Clean(searchPath),
		recursive:  strings.Contains(rel, "**"),
		depth:      depth,
	}, nil
}

// isExcluded reports whether an exclude pattern matches file or, with implicit
// descendants, one of its parent directories.
func isExcluded(file string, excludes []string, implicitDescendants bool) bool {
	if len(excludes) == 0 {
		return false
	}
	for p := file; ; {
		slashed := filepath.ToSlash(p)
		for _, ex := range excludes {
			if doublestar.MatchUnvalidated(ex, slashed) {
				return true
			}
		}
		parent := filepath.Dir(p)
		if !implicitDescendants || parent == p {
			return false
		}
		p = parent
	}
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{\\")
}

func dedupKey(path string) string {
	if runtime.GOOS == "windows" {
		return strings.ToLower(path)
	}
	return path
}

// walker walks the tree below one pattern's base directory.
type walker struct {
	ctx     context.Context
	opts    Options
	pattern pattern
	// active holds the resolved directories on the current descent, to stop
	// symlink cycles.
	active map[string]struct{}
}

func (w *walker) run(emit func(path string)) error {
	w.active = make(map[string]struct{})

	info, err := w.stat(w.pattern.base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if info == nil || !info.IsDir() {
		return nil
	}
	if w.pattern.rel == "" {
		if w.opts.ImplicitDescendants {
			return w.walkAll(w.pattern.base, emit)
		}
		return nil
	}
	return w.walkMatching(w.pattern.base, "", emit)
}

// walkMatching visits dir, whose path relative to the base is rel.
func (w *walker) walkMatching(dir string, rel string, emit func(path string)) error {
	leave, err := w.enter(dir)
	if err != nil || leave == nil {
		return err
	}
	defer leave()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, entry.Name())
		entryRel := entry.Name()
		if rel != "" {
			entryRel = rel + "/" + entry.Name()
		}

		info, err := w.stat(path)
		if err != nil {
			return err
		}
		if info == nil {
			continue
		}
		matched, err := doublestar.Match(w.pattern.rel, entryRel)
		if err != nil {
			return fmt.Errorf("invalid search pattern '%s': %w", w.pattern.pattern, err)
		}

		if !info.IsDir() {
			if matched {
				emit(path)
			}
			continue
		}
		if matched && w.opts.ImplicitDescendants {
			if err := w.walkAll(path, emit); err != nil {
				return err
			}
			continue
		}
		if w.pattern.recursive || strings.Count(entryRel, "/")+1 < w.pattern.depth {
			if err := w.walkMatching(path, entryRel, emit); err != nil {
				return err
			}
		}
	}
	return nil
}

// walkAll emits every file below dir.
func (w *walker) walkAll(dir string, emit func(path string)) error {
	leave, err := w.enter(dir)
	if err != nil || leave == nil {
		return err
	}
	defer leave()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(dir, entry.Name())
		info, err := w.stat(path)
		if err != nil {
			return err
		}
		if info == nil {
			continue
		}
		if info.IsDir() {
			if err := w.walkAll(path, emit); err != nil {
				return err
			}
			continue
		}
		emit(path)
	}
	return nil
}

// enter records dir as being visited. A nil leave func with a nil error means
// dir is already on the descent (a symlink cycle) and must be skipped.
func (w *walker) enter(dir string) (func(), error) {
	key := dir
	if w.opts.FollowSymbolicLinks {
		resolved, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
		}
		key = resolved
	}
	if _, ok := w.active[key]; ok {
		log.Warn("Symlink cycle detected, skipping", "path", dir)
		return nil, nil
	}
	w.active[key] = struct{}{}
	return func() { delete(w.active, key) }, nil
}

// stat returns the info used for matching path. Links are only resolved when
// following links; a nil info with a nil error means path must be skipped.
func (w *walker) stat(path string) (fs.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink == 0 || !w.opts.FollowSymbolicLinks {
		return info, nil
	}

	target, err := os.Stat(path)
	if err == nil {
		return target, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if w.opts.OmitBrokenSymbolicLinks {
		log.Debug("Omitting broken symbolic link", "path", path)
		return nil, nil
	}
	return nil, fmt.Errorf("no information found for the path '%s': %w", path, ErrBrokenSymlink)
}

// rootDirectory picks the directory the matched files are addressed from.
func rootDirectory(searchPaths []string, files []string) string {
	if len(searchPaths) == 1 {
		root := searchPaths[0]
		if len(files) == 1 && files[0] == root {
			return filepath.Dir(root)
		}
		return root
	}
	return commonAncestor(searchPaths)
}

// commonAncestor returns the deepest directory shared by all paths. Paths on
// different volumes have none and yield "".
func commonAncestor(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	volume := filepath.VolumeName(paths[0])
	common := splitPath(paths[0])
	for _, p := range paths[1:] {
		if !sameSegment(filepath.VolumeName(p), volume) {
			return ""
		}
		segments := splitPath(p)
		n := 0
		for n < len(common) && n < len(segments) && sameSegment(common[n], segments[n]) {
			n++
		}
		common = common[:n]
	}
	return volume + string(filepath.Separator) + filepath.Join(common...)
}

func splitPath(p string) []string {
	p = filepath.Clean(p)
	p = strings.TrimPrefix(p, filepath.VolumeName(p))
	var segments []string
	for _, s := range strings.Split(p, string(filepath.Separator)) {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func sameSegment(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
