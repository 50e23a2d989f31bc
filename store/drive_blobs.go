package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"

	"github.com/Jumpaku/go-formsnap/errors"
)

const (
	mimeTypeGoogleAppFolder = "application/vnd.google-apps.folder"
	mimeTypeJSON            = "application/json"

	driveFileFields  = "parents,id,name,mimeType,size,modifiedTime"
	driveFilesFields = "nextPageToken,files(parents,id,name,mimeType,size,modifiedTime)"
)

// DriveBlobs stores blobs as files in Google Drive below a root folder. Keys
// are folder paths relative to the root, e.g. "forms/DHGSVR250116.json".
//
// Drive replaces the content of a file in a single media upload, so readers
// never observe a partial snapshot.
type DriveBlobs struct {
	service *drive.Service
	rootID  string
}

var _ Blobs = (*DriveBlobs)(nil)

// NewDriveBlobs returns DriveBlobs rooted at the folder rootID.
func NewDriveBlobs(service *drive.Service, rootID string) *DriveBlobs {
	return &DriveBlobs{service: service, rootID: rootID}
}

func (b *DriveBlobs) ReadBlob(ctx context.Context, key string) (data []byte, err error) {
	parts, err := splitKey(key)
	if err != nil {
		return nil, err
	}
	parentID, found, err := b.findFolder(ctx, parts[:len(parts)-1], false)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewSnapshotNotFound(key, nil)
	}
	file, found, err := b.findFile(ctx, parentID, parts[len(parts)-1])
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewSnapshotNotFound(key, nil)
	}
	return b.download(ctx, file.Id)
}

func (b *DriveBlobs) WriteBlob(ctx context.Context, key string, data []byte) (err error) {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}
	parentID, _, err := b.findFolder(ctx, parts[:len(parts)-1], true)
	if err != nil {
		return err
	}
	name := parts[len(parts)-1]
	file, found, err := b.findFile(ctx, parentID, name)
	if err != nil {
		return err
	}
	if found {
		_, err = b.service.Files.Update(file.Id, &drive.File{}).
			SupportsAllDrives(true).
			Media(bytes.NewReader(data)).
			Context(ctx).
			Do()
		if err != nil {
			return errors.NewGoogleAPIError("failed to upload file", err)
		}
		return nil
	}
	_, err = b.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: mimeTypeJSON,
		Parents:  []string{parentID},
	}).
		SupportsAllDrives(true).
		Media(bytes.NewReader(data)).
		Fields(driveFileFields).
		Context(ctx).
		Do()
	if err != nil {
		return errors.NewGoogleAPIError("failed to create file", err)
	}
	return nil
}

func (b *DriveBlobs) ListBlobs(ctx context.Context, dir string) (blobs []BlobInfo, err error) {
	parts, err := splitDir(dir)
	if err != nil {
		return nil, err
	}
	folderID, found, err := b.findFolder(ctx, parts, false)
	if err != nil || !found {
		return nil, err
	}
	files, err := b.query(ctx, fmt.Sprintf("'%s' in parents and trashed = false", folderID))
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.MimeType == mimeTypeGoogleAppFolder {
			continue
		}
		modTime, _ := time.Parse(time.RFC3339, f.ModifiedTime)
		blobs = append(blobs, BlobInfo{
			Key:     path.Join(append(append([]string{}, parts...), f.Name)...),
			Size:    f.Size,
			ModTime: modTime,
		})
	}
	return blobs, nil
}

// findFolder walks parts from the root folder. With create, missing folders are
// created along the way.
func (b *DriveBlobs) findFolder(ctx context.Context, parts []string, create bool) (folderID string, found bool, err error) {
	currentID := b.rootID
	for _, p := range parts {
		q := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
			escapeQuery(p), currentID, mimeTypeGoogleAppFolder)
		files, err := b.query(ctx, q)
		if err != nil {
			return "", false, fmt.Errorf("failed to find folder '%s' in '%s': %w", p, currentID, err)
		}
		if len(files) > 1 {
			return "", false, fmt.Errorf("multiple folders '%s' exist in '%s': %w", p, currentID, errors.ErrInvalidPath)
		}
		if len(files) == 1 {
			currentID = files[0].Id
			continue
		}
		if !create {
			return "", false, nil
		}
		folder, err := b.service.Files.Create(&drive.File{
			Name:     p,
			MimeType: mimeTypeGoogleAppFolder,
			Parents:  []string{currentID},
		}).
			SupportsAllDrives(true).
			Fields(driveFileFields).
			Context(ctx).
			Do()
		if err != nil {
			return "", false, errors.NewGoogleAPIError("failed to create folder", err)
		}
		currentID = folder.Id
	}
	return currentID, true, nil
}

func (b *DriveBlobs) findFile(ctx context.Context, parentID, name string) (file *drive.File, found bool, err error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType != '%s' and trashed = false",
		escapeQuery(name), parentID, mimeTypeGoogleAppFolder)
	files, err := b.query(ctx, q)
	if err != nil {
		return nil, false, err
	}
	switch len(files) {
	case 0:
		return nil, false, nil
	case 1:
		return files[0], true, nil
	}
	return nil, false, fmt.Errorf("multiple files '%s' exist in '%s': %w", name, parentID, errors.ErrInvalidPath)
}

func (b *DriveBlobs) query(ctx context.Context, q string) (results []*drive.File, err error) {
	err = b.service.Files.List().
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Q(q).
		Fields(driveFilesFields).
		Pages(ctx, func(list *drive.FileList) error {
			results = append(results, list.Files...)
			return nil
		})
	if err != nil {
		return nil, errors.NewGoogleAPIError("failed to query files", err)
	}
	return results, nil
}

func (b *DriveBlobs) download(ctx context.Context, fileID string) (data []byte, err error) {
	resp, err := b.service.Files.Get(fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, errors.NewGoogleAPIError("failed to download file", err)
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			closeErr = errors.NewIOError("failed to close file body", closeErr)
		}
		err = errors.Join(err, closeErr)
	}()

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewIOError("failed to read file body", err)
	}
	return data, nil
}

// splitKey validates a blob key. Keys are relative to the root folder; a
// leading slash is accepted, "." and ".." components are not.
func splitKey(key string) (parts []string, err error) {
	parts, err = splitDir(key)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty key: %w", errors.ErrInvalidPath)
	}
	return parts, nil
}

// splitDir splits a folder path below the root. "." is the root itself.
func splitDir(dir string) (parts []string, err error) {
	if dir == "." {
		return nil, nil
	}
	for _, p := range strings.Split(dir, "/") {
		if p == "." || p == ".." {
			return nil, fmt.Errorf("relative path components are not allowed in %q: %w", dir, errors.ErrInvalidPath)
		}
		if p == "" {
			continue
		}
		parts = append(parts, p)
	}
	return parts, nil
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)
	return s
}
