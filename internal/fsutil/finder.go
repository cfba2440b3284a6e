// Package fsutil provides file system utility functions.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindFilesByExtension recursively searches root within fsys for all files
// ending with the specified extension. Paths are returned in lexical order.
func FindFilesByExtension(fsys fs.FS, root string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// ExpandPaths turns a list of files and directories into the files with the
// given extension, walking directories recursively. Paths that do not exist
// are skipped and duplicates are dropped.
func ExpandPaths(paths []string, extension string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			all = append(all, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			if filepath.Ext(path) == extension {
				add(path)
			}
			continue
		}
		found, err := FindFilesByExtension(os.DirFS(path), ".", extension)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(filepath.Join(path, filepath.FromSlash(f)))
		}
	}
	return all, nil
}
