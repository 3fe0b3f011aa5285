package reconcile

import (
	"os"

	"github.com/pkg/errors"

	"github.com/bobg/mirror"
)

// node is one directory's immediate contents as found on disk just now.
// Entries are in the order the file system listed them.
type node struct {
	path  string
	files []os.FileInfo // regular files
	dirs  []os.FileInfo
	other []os.FileInfo // symlinks, devices, sockets, etc.
}

func readNode(fsys mirror.FS, path string) (*node, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "statting %s", path)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", path)
	}

	infos, err := fsys.ReadDir(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading dir %s", path)
	}

	n := &node{path: path}
	for _, info := range infos {
		name, mode := info.Name(), info.Mode()
		if name == "." || name == ".." {
			continue
		}
		switch {
		case info.IsDir():
			n.dirs = append(n.dirs, info)
		case mode.IsRegular():
			n.files = append(n.files, info)
		default:
			n.other = append(n.other, info)
		}
	}
	return n, nil
}

func (n *node) fileNames() map[string]bool {
	return names(n.files)
}

func (n *node) dirNames() map[string]bool {
	return names(n.dirs)
}

// nonDirs is every entry that is not a directory.
func (n *node) nonDirs() []os.FileInfo {
	result := make([]os.FileInfo, 0, len(n.files)+len(n.other))
	result = append(result, n.files...)
	return append(result, n.other...)
}

func names(infos []os.FileInfo) map[string]bool {
	m := make(map[string]bool, len(infos))
	for _, info := range infos {
		m[info.Name()] = true
	}
	return m
}

// stale is the set difference infos - keep, by name,
// in the order of infos.
func stale(infos []os.FileInfo, keep map[string]bool) []os.FileInfo {
	var result []os.FileInfo
	for _, info := range infos {
		if !keep[info.Name()] {
			result = append(result, info)
		}
	}
	return result
}
