// Package blobstore is a content-addressed store for working-tree
// snapshots: blob files fanned out under a root directory by sha256,
// zstd-compressed at rest, with reference counts and metadata kept in
// badger and hot content in an LRU cache.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("blob not found")
	ErrBadHash  = errors.New("invalid blob hash")
)

// blobMeta tracks one stored blob. RefCount counts the snapshots that
// reference the blob; the file is removed when it reaches zero.
type blobMeta struct {
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	RefCount   uint32    `json:"ref_count"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
}

type Store struct {
	root  string
	db    *badger.DB
	ownDB bool
	cache *lru.Cache[string, []byte]
	comp  *compressor
	log   *zap.Logger

	// mu serializes ref-count read/modify/write cycles.
	mu sync.Mutex
}

type Options struct {
	Root        string
	CacheSize   int
	Compression CompressionOptions
	Logger      *zap.Logger
}

// Open builds a store over an existing badger database. The caller
// keeps ownership of the database.
func Open(db *badger.DB, opts Options) (*Store, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}
	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating blob cache: %w", err)
	}
	comp, err := newCompressor(opts.Compression)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		root:  opts.Root,
		db:    db,
		cache: cache,
		comp:  comp,
		log:   log,
	}, nil
}

// OpenDir opens a store with its own badger database under dir,
// blobs under dir/objects and metadata under dir/db.
func OpenDir(dir string, opts Options) (*Store, error) {
	dbOpts := badger.DefaultOptions(filepath.Join(dir, "db"))
	dbOpts.Logger = nil
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("opening blob metadata db: %w", err)
	}
	if opts.Root == "" {
		opts.Root = filepath.Join(dir, "objects")
	}
	s, err := Open(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownDB = true
	return s, nil
}

func (s *Store) Close() error {
	s.comp.close()
	if s.ownDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores content and returns its hash. Name only steers the
// compression heuristics. Storing content that already exists bumps
// its reference count instead of rewriting the file.
func (s *Store) Put(ctx context.Context, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hash := hashContent(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getMeta(hash)
	switch {
	case err == nil:
		meta.RefCount++
		if err := s.putMetaRecord(meta); err != nil {
			return "", fmt.Errorf("updating ref count: %w", err)
		}
		return hash, nil
	case !errors.Is(err, ErrNotFound):
		return "", fmt.Errorf("checking blob existence: %w", err)
	}

	stored, compressed := s.comp.compress(name, content)
	path := s.blobPath(hash)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating blob directory: %w", err)
	}
	if err := os.WriteFile(path, stored, 0o644); err != nil {
		return "", fmt.Errorf("writing blob: %w", err)
	}

	meta = blobMeta{
		Hash:       hash,
		Size:       int64(len(content)),
		RefCount:   1,
		Compressed: compressed,
		CreatedAt:  time.Now(),
	}
	if err := s.putMetaRecord(meta); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("storing blob metadata: %w", err)
	}

	s.cache.Add(hash, content)
	s.log.Debug("blob stored",
		zap.String("hash", hash),
		zap.Int("size", len(content)),
		zap.Bool("compressed", compressed))
	return hash, nil
}

// Get returns the content for hash, verifying it on the way out.
func (s *Store) Get(ctx context.Context, hash string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validHash(hash) {
		return nil, ErrBadHash
	}
	if content, ok := s.cache.Get(hash); ok {
		return content, nil
	}

	meta, err := s.getMeta(hash)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.blobPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading blob: %w", err)
	}

	content := raw
	if meta.Compressed {
		content, err = s.comp.decompress(raw)
		if err != nil {
			return nil, fmt.Errorf("decompressing blob: %w", err)
		}
	}

	if hashContent(content) != hash {
		return nil, fmt.Errorf("blob %s: content hash mismatch", hash)
	}

	s.cache.Add(hash, content)
	return content, nil
}

// Release drops one reference to hash, deleting the blob when the
// count reaches zero. Releasing an unknown hash is a no-op.
func (s *Store) Release(ctx context.Context, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validHash(hash) {
		return ErrBadHash
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getMeta(hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	if meta.RefCount > 1 {
		meta.RefCount--
		return s.putMetaRecord(meta)
	}

	if err := os.Remove(s.blobPath(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing blob: %w", err)
	}
	if err := s.deleteMetaRecord(hash); err != nil {
		return fmt.Errorf("deleting blob metadata: %w", err)
	}
	s.cache.Remove(hash)
	return nil
}

// Exists reports whether hash is stored.
func (s *Store) Exists(hash string) (bool, error) {
	if !validHash(hash) {
		return false, ErrBadHash
	}
	_, err := s.getMeta(hash)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Verify re-reads the blob and checks it against its hash.
func (s *Store) Verify(ctx context.Context, hash string) error {
	_, err := s.Get(ctx, hash)
	return err
}

func (s *Store) blobPath(hash string) string {
	return filepath.Join(s.root, hash[:2], hash[2:])
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func validHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

const blobKeyPrefix = "blob:"

func (s *Store) putMetaRecord(meta blobMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling blob metadata: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(blobKeyPrefix+meta.Hash), data)
	})
}

func (s *Store) getMeta(hash string) (blobMeta, error) {
	var meta blobMeta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(blobKeyPrefix + hash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	return meta, err
}

func (s *Store) deleteMetaRecord(hash string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(blobKeyPrefix + hash))
	})
}
