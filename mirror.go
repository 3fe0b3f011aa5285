package mirror

import (
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
)

// FS is the view of a file system that a reconciliation pass needs.
// Every billy.Filesystem implements it.
type FS interface {
	// ReadDir lists the entries of a directory.
	// The entries need not be sorted.
	ReadDir(path string) ([]os.FileInfo, error)

	// Stat describes the named file.
	Stat(path string) (os.FileInfo, error)

	// Open opens the named file for reading.
	Open(path string) (billy.File, error)

	// OpenFile opens the named file with the given flags and permission bits.
	OpenFile(path string, flag int, perm os.FileMode) (billy.File, error)

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string, perm os.FileMode) error

	// Remove removes a file or an empty directory.
	Remove(path string) error

	// Join joins path elements using the file system's separator.
	Join(elem ...string) string
}

// OS returns an FS for the host file system.
// Paths passed to it are interpreted as absolute.
func OS() FS {
	return osfs.New("/")
}

// Mem returns a new, empty in-memory FS.
func Mem() FS {
	return memfs.New()
}

// Sink receives leveled progress and failure messages.
// Messages are printf-style templates with positional arguments.
// A *zap.SugaredLogger is a Sink.
type Sink interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type discard struct{}

func (discard) Infof(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}
