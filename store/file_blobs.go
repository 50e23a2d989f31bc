package store

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/Jumpaku/go-formsnap/errors"
)

// FileBlobs stores blobs as files. Writes go to a temporary file in the target
// directory which is then renamed over the target.
type FileBlobs struct {
	fs afero.Fs
}

var _ Blobs = (*FileBlobs)(nil)

// NewFileBlobs returns FileBlobs on fsys, or on the OS file system when fsys is nil.
func NewFileBlobs(fsys afero.Fs) *FileBlobs {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileBlobs{fs: fsys}
}

func (b *FileBlobs) ReadBlob(_ context.Context, key string) (data []byte, err error) {
	data, err = afero.ReadFile(b.fs, filepath.FromSlash(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewSnapshotNotFound(key, err)
		}
		return nil, errors.NewIOError("failed to read "+key, err)
	}
	return data, nil
}

func (b *FileBlobs) WriteBlob(_ context.Context, key string, data []byte) (err error) {
	name := filepath.FromSlash(key)
	dir := filepath.Dir(name)
	if err := b.fs.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIOError("failed to create directory "+dir, err)
	}

	tmp, err := afero.TempFile(b.fs, dir, "."+filepath.Base(name)+".tmp-*")
	if err != nil {
		return errors.NewIOError("failed to create temporary file", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = b.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.NewIOError("failed to write "+tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.NewIOError("failed to sync "+tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewIOError("failed to close "+tmpName, err)
	}
	if err := b.fs.Chmod(tmpName, 0o644); err != nil {
		return errors.NewIOError("failed to chmod "+tmpName, err)
	}
	if err := b.fs.Rename(tmpName, name); err != nil {
		return errors.NewIOError("failed to move snapshot into place", err)
	}
	return nil
}

func (b *FileBlobs) ListBlobs(_ context.Context, dir string) (blobs []BlobInfo, err error) {
	infos, err := afero.ReadDir(b.fs, filepath.FromSlash(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.NewIOError("failed to read directory "+dir, err)
	}
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		blobs = append(blobs, BlobInfo{
			Key:     path.Join(filepath.ToSlash(dir), info.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return blobs, nil
}
