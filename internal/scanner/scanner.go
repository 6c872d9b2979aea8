// Package scanner discovers source documents under a root directory. It
// streams matches instead of collecting them so large corpora do not buffer
// in memory, and it never follows data directories: hidden entries and
// excluded patterns are pruned during the walk.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DefaultMaxFileSize caps documents at 50MB unless overridden.
const DefaultMaxFileSize = 50 * 1024 * 1024

// FileInfo describes one discovered document.
type FileInfo struct {
	// Path is relative to the scanned root.
	Path string

	// AbsPath is the absolute location on disk.
	AbsPath string

	Size    int64
	ModTime time.Time

	// Ext is the lowercased extension, with the dot.
	Ext string
}

// Result is one streamed outcome: a discovered file or a walk error.
type Result struct {
	File *FileInfo
	Err  error
}

// Options configures a scan.
type Options struct {
	// Root is the directory to walk.
	Root string

	// Extensions restricts matches to these extensions, case-insensitive,
	// with or without the leading dot. Empty accepts every file.
	Extensions []string

	// Include restricts matches to these patterns when non-empty. A
	// pattern without glob characters matches a path prefix, so "docs"
	// covers the whole docs subtree.
	Include []string

	// Exclude drops matching files and prunes matching directories.
	// "**/name/**" excludes a directory anywhere in the tree, "**/glob"
	// matches base names anywhere.
	Exclude []string

	// MaxFileSize skips files larger than this many bytes.
	// Zero means DefaultMaxFileSize.
	MaxFileSize int64

	// MaxFiles stops the walk after this many matches. Zero means no cap.
	MaxFiles int

	// IncludeHidden scans dot-prefixed files and directories, which are
	// skipped by default.
	IncludeHidden bool

	// FollowSymlinks emits symlinked files, skipped by default.
	FollowSymlinks bool
}

// Scan walks the root and streams matching files in walk order. The channel
// closes when the walk finishes; cancelling the context ends the walk early.
// Unreadable entries are skipped, not fatal.
func Scan(ctx context.Context, opts Options) (<-chan Result, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("scanner: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanner: root %s is not a directory", absRoot)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	exts := extensionSet(opts.Extensions)

	results := make(chan Result, 64)
	go func() {
		defer close(results)
		walk(ctx, absRoot, opts, exts, maxSize, results)
	}()
	return results, nil
}

// Collect drains a scan into a slice, in walk order.
func Collect(ctx context.Context, opts Options) ([]*FileInfo, error) {
	stream, err := Scan(ctx, opts)
	if err != nil {
		return nil, err
	}
	var files []*FileInfo
	for res := range stream {
		if res.Err != nil {
			return files, res.Err
		}
		files = append(files, res.File)
	}
	return files, ctx.Err()
}

func walk(ctx context.Context, absRoot string, opts Options, exts map[string]bool, maxSize int64, results chan<- Result) {
	matched := 0
	err := filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil || rel == "." {
			return nil
		}

		base := filepath.Base(rel)
		hidden := strings.HasPrefix(base, ".") && !opts.IncludeHidden

		if d.IsDir() {
			if hidden || matchesAny(rel, opts.Exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if len(exts) > 0 && !exts[strings.ToLower(filepath.Ext(base))] {
			return nil
		}
		if matchesAny(rel, opts.Exclude) {
			return nil
		}
		if len(opts.Include) > 0 && !matchesAny(rel, opts.Include) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxSize {
			slog.Debug("scan_oversized_skipped",
				slog.String("path", rel),
				slog.Int64("size_bytes", info.Size()),
				slog.Int64("max_bytes", maxSize))
			return nil
		}

		file := &FileInfo{
			Path:    rel,
			AbsPath: p,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Ext:     strings.ToLower(filepath.Ext(base)),
		}
		select {
		case results <- Result{File: file}:
		case <-ctx.Done():
			return ctx.Err()
		}

		matched++
		if opts.MaxFiles > 0 && matched >= opts.MaxFiles {
			slog.Warn("scan_file_cap_reached", slog.Int("max_files", opts.MaxFiles))
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		select {
		case results <- Result{Err: err}:
		case <-ctx.Done():
		}
	}
}

// Matches reports whether the slash-normalized relative path matches any of
// the exclude patterns, using the same rules Collect applies during a scan.
// The watcher uses it so that live events and batch scans agree on what is
// excluded.
func Matches(rel string, patterns []string) bool {
	return matchesAny(rel, patterns)
}

// matchesAny reports whether the slash-normalized relative path matches any
// pattern.
func matchesAny(rel string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := path.Base(rel)
	for _, pat := range patterns {
		if matchPattern(rel, base, pat) {
			return true
		}
	}
	return false
}

func matchPattern(rel, base, pat string) bool {
	pat = strings.TrimPrefix(filepath.ToSlash(pat), "./")
	if pat == "" {
		return false
	}

	if inner, ok := strings.CutPrefix(pat, "**/"); ok {
		// "**/dir/**": any path segment matching dir.
		if dir, ok := strings.CutSuffix(inner, "/**"); ok {
			for _, seg := range strings.Split(rel, "/") {
				if matched, _ := path.Match(dir, seg); matched {
					return true
				}
			}
			return false
		}
		// "**/glob": base name anywhere in the tree.
		matched, _ := path.Match(inner, base)
		return matched
	}

	// A literal pattern is a path prefix, so "docs" covers docs/guide.md.
	if !strings.ContainsAny(pat, "*?[") {
		return rel == pat || strings.HasPrefix(rel, pat+"/")
	}

	if matched, _ := path.Match(pat, rel); matched {
		return true
	}
	matched, _ := path.Match(pat, base)
	return matched
}

func extensionSet(exts []string) map[string]bool {
	if len(exts) == 0 {
		return nil
	}
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}
