// Package snapshot keeps the discard history: before/after content
// blobs captured around destructive working-tree mutations, stacked
// newest-last and persisted as a single history blob whose hash lives
// in repository metadata.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ObjectStore stores blob content by hash.
type ObjectStore interface {
	Put(ctx context.Context, name string, content []byte) (string, error)
	Get(ctx context.Context, hash string) ([]byte, error)
	Release(ctx context.Context, hash string) error
}

// MetaStore is the repository-local metadata keyspace the history head
// pointer is written to.
type MetaStore interface {
	GetMeta(key string) ([]byte, error)
	PutMeta(key string, value []byte) error
	DeleteMeta(key string) error
}

// ErrNotSafe reports that the safety gate rejected a batch. The
// mutation did not run.
var ErrNotSafe = errors.New("unsafe to snapshot")

const (
	historyMetaKey = "discard-history"
	// maxDepth bounds the undo stack; the oldest snapshots fall off.
	maxDepth = 60

	captureConcurrency = 8
)

// FileState is one path's before/after content pair. An empty hash
// means the file did not exist on that side of the mutation.
type FileState struct {
	Path       string `cbor:"path"`
	BeforeHash string `cbor:"before"`
	AfterHash  string `cbor:"after"`
}

// Snapshot covers one destructive batch. CreatedAt is unix seconds so
// the serialized form round-trips byte-identically.
type Snapshot struct {
	Entries   []FileState `cbor:"entries"`
	Group     string      `cbor:"group,omitempty"`
	CreatedAt int64       `cbor:"created_at"`
}

// Time returns the creation time in UTC.
func (s *Snapshot) Time() time.Time {
	return time.Unix(s.CreatedAt, 0).UTC()
}

// Paths lists the paths the snapshot covers.
func (s *Snapshot) Paths() []string {
	paths := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		paths[i] = e.Path
	}
	return paths
}

// Store owns the snapshot stack for one working directory.
type Store struct {
	root    string
	objects ObjectStore
	meta    MetaStore
	log     *zap.Logger

	mu    sync.Mutex
	stack []Snapshot
}

func New(root string, objects ObjectStore, meta MetaStore, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{root: root, objects: objects, meta: meta, log: log}
}

// Load restores the stack recorded in metadata. A missing, corrupt, or
// unresolvable history behaves as an empty stack, never as an error:
// losing undo history must not block opening the repository.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack = nil

	ref, err := s.meta.GetMeta(historyMetaKey)
	if err != nil {
		return
	}
	blob, err := s.objects.Get(ctx, string(ref))
	if err != nil {
		s.log.Debug("discard history unresolvable, starting empty",
			zap.String("hash", string(ref)),
			zap.Error(err))
		return
	}
	stack, err := decodeStack(blob)
	if err != nil {
		s.log.Debug("discard history undecodable, starting empty", zap.Error(err))
		return
	}
	s.stack = stack
}

// StoreBeforeAndAfterBlobs wraps one destructive batch: it captures
// the current content of every path, runs mutate exactly once, captures
// the content again, and pushes one snapshot. The isSafe gate is
// consulted once for the whole batch before anything happens; a false
// answer aborts with ErrNotSafe and mutate never runs. Either capture
// failing also aborts, releasing any blobs already stored.
func (s *Store) StoreBeforeAndAfterBlobs(ctx context.Context, paths []string, isSafe func() bool, mutate func() error, group string) (*Snapshot, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if isSafe != nil && !isSafe() {
		return nil, ErrNotSafe
	}

	before, err := s.captureAll(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("capturing before state: %w", err)
	}
	if err := mutate(); err != nil {
		s.releaseAll(ctx, before)
		return nil, err
	}
	after, err := s.captureAll(ctx, paths)
	if err != nil {
		s.releaseAll(ctx, before)
		return nil, fmt.Errorf("capturing after state: %w", err)
	}

	snap := Snapshot{
		Entries:   make([]FileState, len(paths)),
		Group:     group,
		CreatedAt: time.Now().Unix(),
	}
	for i, p := range paths {
		snap.Entries[i] = FileState{Path: p, BeforeHash: before[i], AfterHash: after[i]}
	}

	s.mu.Lock()
	s.stack = append(s.stack, snap)
	var evicted []Snapshot
	if len(s.stack) > maxDepth {
		n := len(s.stack) - maxDepth
		evicted = append(evicted, s.stack[:n]...)
		s.stack = append([]Snapshot(nil), s.stack[n:]...)
	}
	s.mu.Unlock()

	for _, old := range evicted {
		s.releaseSnapshot(ctx, old)
	}
	return &snap, nil
}

// captureAll stores the current content of every path and returns one
// hash per path, "" for paths that do not exist.
func (s *Store) captureAll(ctx context.Context, paths []string) ([]string, error) {
	hashes := make([]string, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(captureConcurrency)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			content, err := os.ReadFile(filepath.Join(s.root, p))
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return fmt.Errorf("reading %s: %w", p, err)
			}
			hash, err := s.objects.Put(gctx, p, content)
			if err != nil {
				return fmt.Errorf("storing blob for %s: %w", p, err)
			}
			hashes[i] = hash
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.releaseAll(ctx, hashes)
		return nil, err
	}
	return hashes, nil
}

func (s *Store) releaseAll(ctx context.Context, hashes []string) {
	for _, h := range hashes {
		if h == "" {
			continue
		}
		if err := s.objects.Release(ctx, h); err != nil {
			s.log.Warn("releasing blob", zap.String("hash", h), zap.Error(err))
		}
	}
}

func (s *Store) releaseSnapshot(ctx context.Context, snap Snapshot) {
	for _, e := range snap.Entries {
		for _, h := range []string{e.BeforeHash, e.AfterHash} {
			if h == "" {
				continue
			}
			if err := s.objects.Release(ctx, h); err != nil {
				s.log.Warn("releasing blob",
					zap.String("path", e.Path),
					zap.String("hash", h),
					zap.Error(err))
			}
		}
	}
}

// CreateHistoryBlob serializes the whole stack into one blob and
// returns its content hash. Equal stacks serialize to identical bytes,
// so the hash is stable across processes.
func (s *Store) CreateHistoryBlob(ctx context.Context) (string, error) {
	s.mu.Lock()
	stack := append([]Snapshot(nil), s.stack...)
	s.mu.Unlock()

	blob, err := encodeStack(stack)
	if err != nil {
		return "", fmt.Errorf("encoding discard history: %w", err)
	}
	hash, err := s.objects.Put(ctx, "history", blob)
	if err != nil {
		return "", fmt.Errorf("storing discard history: %w", err)
	}
	return hash, nil
}

// UpdateHistory persists the current stack and repoints the metadata
// head at it, releasing the previous history blob.
func (s *Store) UpdateHistory(ctx context.Context) error {
	hash, err := s.CreateHistoryBlob(ctx)
	if err != nil {
		return err
	}

	var prev string
	if data, err := s.meta.GetMeta(historyMetaKey); err == nil {
		prev = string(data)
	}
	if err := s.meta.PutMeta(historyMetaKey, []byte(hash)); err != nil {
		return fmt.Errorf("recording discard history hash: %w", err)
	}
	switch {
	case prev == "":
	case prev == hash:
		// CreateHistoryBlob bumped the ref of a blob this store
		// already pointed at; undo the double count.
		if err := s.objects.Release(ctx, hash); err != nil {
			s.log.Warn("releasing duplicate history blob", zap.Error(err))
		}
	default:
		if err := s.objects.Release(ctx, prev); err != nil {
			s.log.Warn("releasing previous history blob", zap.Error(err))
		}
	}
	return nil
}

// Pop restores the newest snapshot's before-contents to the working
// tree and removes it from the stack. It returns nil with no error
// when the stack is empty.
func (s *Store) Pop(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	if len(s.stack) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	snap := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.mu.Unlock()

	// Resolve every blob before touching the tree, so a missing blob
	// leaves both the stack and the working tree as they were.
	contents := make(map[string][]byte)
	for _, e := range snap.Entries {
		if e.BeforeHash == "" {
			continue
		}
		content, err := s.objects.Get(ctx, e.BeforeHash)
		if err != nil {
			s.mu.Lock()
			s.stack = append(s.stack, snap)
			s.mu.Unlock()
			return nil, fmt.Errorf("resolving before blob for %s: %w", e.Path, err)
		}
		contents[e.Path] = content
	}

	for _, e := range snap.Entries {
		target := filepath.Join(s.root, e.Path)
		if e.BeforeHash == "" {
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("removing %s: %w", e.Path, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("restoring %s: %w", e.Path, err)
		}
		if err := os.WriteFile(target, contents[e.Path], 0o644); err != nil {
			return nil, fmt.Errorf("restoring %s: %w", e.Path, err)
		}
	}

	s.releaseSnapshot(ctx, snap)
	return &snap, nil
}

// History returns a copy of the stack, newest last.
func (s *Store) History() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Snapshot(nil), s.stack...)
}

// Len reports the stack depth.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}
