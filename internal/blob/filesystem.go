package blob

import (
	"traitforge/internal/infra/blob/fs"
)

// FilesystemStore serves a local trait directory tree.
type FilesystemStore = fs.Store

// NewFilesystem opens the trait tree at root, creating the directory if needed.
func NewFilesystem(root string) (*FilesystemStore, error) {
	return fs.New(root)
}

// LocalRoot reports the directory behind s when it is filesystem backed, so
// callers can watch the tree artists edit.
func LocalRoot(s Store) (string, bool) {
	fsStore, ok := s.(*FilesystemStore)
	if !ok {
		return "", false
	}
	return fsStore.Root(), true
}
