package utils

import (
	"os"
	"path/filepath"
)

// GetAbsolutePath returns path if it was absolute, otherwise joins it with baseDir
func GetAbsolutePath(path, baseDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Clean(filepath.Join(baseDir, path))
}

// SearchPath splits a list of directories separated by the OS list separator,
// as found in CNI_PATH. Empty entries are dropped, relative entries are
// resolved against the working directory and duplicates keep their first position.
func SearchPath(list string) []string {
	wd, err := os.Getwd()
	if err != nil {
		wd = string(filepath.Separator)
	}

	seen := make(map[string]struct{})
	var dirs []string
	for _, dir := range filepath.SplitList(list) {
		if dir == "" {
			continue
		}
		dir = filepath.Clean(GetAbsolutePath(dir, wd))
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	return dirs
}
