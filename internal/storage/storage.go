// Package storage exposes the served directory tree as a webdav.FileSystem.
//
// The filesystem is built on afero so the same adapter serves the on-disk
// data directory in production and an in-memory tree in tests.
package storage

import (
	"context"
	"os"

	"github.com/spf13/afero"
	"golang.org/x/net/webdav"
)

// FS adapts an afero.Fs to webdav.FileSystem.
type FS struct {
	fs afero.Fs
}

var _ webdav.FileSystem = (*FS)(nil)

// NewDisk returns a filesystem rooted at dir, creating dir if it does not
// exist. Paths handed to the adapter cannot escape the root.
func NewDisk(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FS{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}, nil
}

// NewMemory returns an empty in-memory filesystem.
func NewMemory() *FS {
	return &FS{fs: afero.NewMemMapFs()}
}

func (f *FS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return f.fs.Mkdir(name, perm)
}

func (f *FS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	return f.fs.OpenFile(name, flag, perm)
}

func (f *FS) RemoveAll(ctx context.Context, name string) error {
	return f.fs.RemoveAll(name)
}

func (f *FS) Rename(ctx context.Context, oldName, newName string) error {
	return f.fs.Rename(oldName, newName)
}

func (f *FS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	return f.fs.Stat(name)
}
