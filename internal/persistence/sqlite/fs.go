package sqlite

import "os"

// Filesystem abstracts the file operations the gateway needs around the
// database file. Implementations must treat Rename as a move that never
// overwrites silently where the platform allows it.
type Filesystem interface {
	// MkdirAll creates a directory along with any missing parents.
	MkdirAll(path string) error

	// Exists reports whether a file or directory is present at path.
	Exists(path string) bool

	// Rename moves the file at oldPath to newPath.
	Rename(oldPath, newPath string) error
}

type osFilesystem struct{}

// OSFilesystem returns the operating-system backed Filesystem used outside
// of tests.
func OSFilesystem() Filesystem {
	return osFilesystem{}
}

func (osFilesystem) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (osFilesystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (osFilesystem) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}
