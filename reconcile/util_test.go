package reconcile

import (
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"

	"github.com/bobg/mirror"
)

// build populates root in fsys.
// Keys ending in "/" are directories; other keys are files with the given content.
func build(t *testing.T, fsys mirror.FS, root string, tree map[string]string) {
	t.Helper()

	if err := fsys.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}

	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		full := fsys.Join(root, k)
		if strings.HasSuffix(k, "/") {
			if err := fsys.MkdirAll(full, 0755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := fsys.MkdirAll(fsys.Join(root, path.Dir(k)), 0755); err != nil {
			t.Fatal(err)
		}
		writeFile(t, fsys, full, tree[k])
	}
}

func writeFile(t *testing.T, fsys mirror.FS, name, content string) {
	t.Helper()

	f, err := fsys.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = io.WriteString(f, content); err != nil {
		t.Fatal(err)
	}
	if err = f.Close(); err != nil {
		t.Fatal(err)
	}
}

// snapshot is the inverse of build.
func snapshot(t *testing.T, fsys mirror.FS, root string) map[string]string {
	t.Helper()

	result := make(map[string]string)

	var walk func(rel string)
	walk = func(rel string) {
		infos, err := fsys.ReadDir(fsys.Join(root, rel))
		if err != nil {
			t.Fatal(err)
		}
		for _, info := range infos {
			r := path.Join(rel, info.Name())
			if info.IsDir() {
				result[r+"/"] = ""
				walk(r)
				continue
			}
			f, err := fsys.Open(fsys.Join(root, r))
			if err != nil {
				t.Fatal(err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				t.Fatal(err)
			}
			result[r] = string(data)
		}
	}
	walk("")

	return result
}

func exists(t *testing.T, fsys mirror.FS, name string) bool {
	t.Helper()

	_, err := fsys.Stat(name)
	if os.IsNotExist(err) {
		return false
	}
	if err != nil {
		t.Fatal(err)
	}
	return true
}

// faultyFS fails selected operations on selected paths.
type faultyFS struct {
	mirror.FS

	openFile map[string]error
	remove   map[string]error
	readDir  map[string]error
}

func (f *faultyFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	if err := f.openFile[name]; err != nil {
		return nil, err
	}
	return f.FS.OpenFile(name, flag, perm)
}

func (f *faultyFS) Remove(name string) error {
	if err := f.remove[name]; err != nil {
		return err
	}
	return f.FS.Remove(name)
}

func (f *faultyFS) ReadDir(name string) ([]os.FileInfo, error) {
	if err := f.readDir[name]; err != nil {
		return nil, err
	}
	return f.FS.ReadDir(name)
}
