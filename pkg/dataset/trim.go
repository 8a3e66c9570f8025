package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Trim deletes every regular file in dir whose name is not listed in
// keepFile, one name per line. Blank lines are ignored and
// subdirectories are left alone. It returns the names it deleted.
//
// An empty keep list is taken literally and removes every file in dir.
func Trim(fsys afero.Fs, dir, keepFile string) ([]string, error) {
	data, err := afero.ReadFile(fsys, keepFile)
	if err != nil {
		return nil, fmt.Errorf("read keep list: %w", err)
	}
	keep := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			keep[line] = true
		}
	}

	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var deleted []string
	for _, info := range infos {
		if info.IsDir() || keep[info.Name()] {
			continue
		}
		if err := fsys.Remove(filepath.Join(dir, info.Name())); err != nil {
			return deleted, fmt.Errorf("remove %s: %w", info.Name(), err)
		}
		deleted = append(deleted, info.Name())
	}
	return deleted, nil
}
