// Package store persists schema snapshots under deterministic names.
//
// A snapshot is named {prefix}{YYMMDD}.json inside the store's output
// directory. Writing the same name twice replaces the earlier snapshot.
package store

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/zeebo/xxh3"

	"github.com/Jumpaku/go-formsnap/errors"
	"github.com/Jumpaku/go-formsnap/schema"
)

const (
	// DateStampLayout formats a date as YYMMDD.
	DateStampLayout = "060102"
	Extension       = "json"
)

// Blobs is a key to bytes store. Keys are slash-separated paths.
type Blobs interface {
	// ReadBlob fails with errors.ErrSnapshotNotFound when key is absent.
	ReadBlob(ctx context.Context, key string) ([]byte, error)
	// WriteBlob replaces the content at key so that readers observe either the
	// previous or the new content, never a partial write.
	WriteBlob(ctx context.Context, key string, data []byte) error
	// ListBlobs returns the blobs directly inside dir. A missing dir is empty.
	ListBlobs(ctx context.Context, dir string) ([]BlobInfo, error)
}

type BlobInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Store names, writes and reads snapshots.
type Store struct {
	blobs         Blobs
	dir           string
	defaultPrefix string
	now           func() time.Time
	log           logger.Logger
}

type Option func(*Store)

// WithClock replaces time.Now for default date stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithDefaultPrefix(prefix string) Option {
	return func(s *Store) { s.defaultPrefix = prefix }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates a Store writing snapshots into dir through blobs. An empty dir
// or "." is the root of blobs.
func New(blobs Blobs, dir string, opts ...Option) *Store {
	s := &Store{
		blobs: blobs,
		dir:   path.Clean(filepath.ToSlash(dir)),
		now:   time.Now,
		log:   logger.NOP,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// NameFor returns the snapshot path for prefix and dateStamp. An empty
// dateStamp means today, evaluated on every call. An empty prefix means the
// store's default prefix.
func (s *Store) NameFor(prefix, dateStamp string) string {
	if prefix == "" {
		prefix = s.defaultPrefix
	}
	if dateStamp == "" {
		dateStamp = s.now().Format(DateStampLayout)
	}
	return path.Join(s.dir, prefix+dateStamp+"."+Extension)
}

// PutResult describes a written snapshot.
type PutResult struct {
	Path     string
	Size     int
	Checksum uint64
	// Unchanged is true when the previous snapshot at Path had identical content.
	Unchanged bool
}

// Put serializes sc and writes it to p, replacing any previous snapshot.
func (s *Store) Put(ctx context.Context, p string, sc schema.Schema) (result PutResult, err error) {
	encoded, err := schema.Encode(sc)
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to encode snapshot %q: %w", p, err)
	}
	data := schema.Indent(encoded)
	result = PutResult{Path: p, Size: len(data), Checksum: xxh3.Hash(data)}

	previous, err := s.blobs.ReadBlob(ctx, p)
	switch {
	case err == nil:
		result.Unchanged = xxh3.Hash(previous) == result.Checksum
	case errors.Is(err, errors.ErrSnapshotNotFound):
	default:
		s.log.Warnn("could not read previous snapshot", logger.NewStringField("path", p), logger.NewErrorField(err))
	}

	if err := s.blobs.WriteBlob(ctx, p, data); err != nil {
		return PutResult{}, fmt.Errorf("failed to write snapshot %q: %w", p, err)
	}
	s.log.Infon("snapshot written",
		logger.NewStringField("path", p),
		logger.NewIntField("bytes", int64(result.Size)),
		logger.NewBoolField("unchanged", result.Unchanged),
	)
	return result, nil
}

// Get reads and decodes the snapshot at p.
func (s *Store) Get(ctx context.Context, p string) (sc schema.Schema, err error) {
	data, err := s.blobs.ReadBlob(ctx, p)
	if err != nil {
		return schema.Schema{}, err
	}
	sc, err = schema.Decode(data)
	if err != nil {
		return schema.Schema{}, fmt.Errorf("snapshot %q: %w", p, err)
	}
	return sc, nil
}

// Entry is a stored snapshot.
type Entry struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// List returns the snapshots in the output directory whose names start with
// prefix, sorted by name. Names embed YYMMDD, so entries of one prefix are in
// chronological order.
func (s *Store) List(ctx context.Context, prefix string) (entries []Entry, err error) {
	blobs, err := s.blobs.ListBlobs(ctx, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots in %q: %w", s.dir, err)
	}
	for _, b := range blobs {
		name := path.Base(b.Key)
		if !strings.HasPrefix(name, prefix) || path.Ext(name) != "."+Extension {
			continue
		}
		entries = append(entries, Entry{Path: b.Key, Name: name, Size: b.Size, ModTime: b.ModTime})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
