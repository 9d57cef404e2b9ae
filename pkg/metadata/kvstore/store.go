package kvstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/linpawslitap/mds-scaling/internal/logger"
	"github.com/linpawslitap/mds-scaling/pkg/metadata"
)

// Options configures a Store.
type Options struct {
	// Compress enables zstd compression of inline file payloads.
	Compress bool

	// UID and GID are recorded as owner of newly created entries.
	UID uint32
	GID uint32

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// ListPageSize is the number of directory entries a lister reads per
	// transaction (default 256).
	ListPageSize int
}

// Store implements metadata.MetadataStore over any ordered key-value Backend.
//
// Thread safety:
// Namespace mutations run inside backend transactions. The handle table is
// guarded by mu. Each handle is expected to be used by one goroutine.
type Store struct {
	backend Backend
	codec   *codec
	opts    Options

	mu          sync.Mutex
	initialized bool
	destroyed   bool
	rootID      string
	handles     map[metadata.FileHandle]*openFile
	nextHandle  atomic.Int64
}

// openFile is the in-memory state behind a FileHandle.
type openFile struct {
	path     string
	parentID string
	name     string
	id       string
	flags    int
	pos      int64
}

var _ metadata.MetadataStore = (*Store)(nil)

// New wraps backend. Init must be called before use.
func New(backend Backend, opts Options) (*Store, error) {
	if backend == nil {
		return nil, errors.New("kvstore: nil backend")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ListPageSize <= 0 {
		opts.ListPageSize = 256
	}

	c, err := newCodec(opts.Compress)
	if err != nil {
		return nil, err
	}

	return &Store{
		backend: backend,
		codec:   c,
		opts:    opts,
		handles: make(map[metadata.FileHandle]*openFile),
	}, nil
}

// Init creates the root directory on first use and loads its ID.
func (s *Store) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	destroyed := s.destroyed
	s.mu.Unlock()
	if destroyed {
		return metadata.NewError(metadata.ErrNotInitialized, "metadata store destroyed", "")
	}

	var rootID string
	err := s.backend.Update(ctx, func(txn Txn) error {
		root, err := getInode(txn, keyRoot)
		if err != nil {
			return err
		}
		if root != nil {
			rootID = root.ID
			return nil
		}

		root = s.newInode("", metadata.ModeDir|0o755)
		rootID = root.ID
		return putInode(txn, keyRoot, root)
	})
	if err != nil {
		return fmt.Errorf("init metadata store: %w", err)
	}

	s.mu.Lock()
	s.rootID = rootID
	s.initialized = true
	s.mu.Unlock()

	logger.Debug("metadata store initialized, root=%s", rootID)
	return nil
}

// Destroy drops all handles and closes the backend.
func (s *Store) Destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	s.initialized = false
	if n := len(s.handles); n > 0 {
		logger.Warn("metadata store destroyed with %d open handles", n)
	}
	s.handles = make(map[metadata.FileHandle]*openFile)
	s.mu.Unlock()

	s.codec.close()
	return s.backend.Close()
}

// ============================================================================
// Helpers
// ============================================================================

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return metadata.NewError(metadata.ErrNotInitialized, "metadata store not initialized", "")
	}
	return nil
}

func (s *Store) newInode(parentID string, mode uint32) *inode {
	now := s.opts.Now()
	sec, nsec := now.Unix(), int64(now.Nanosecond())
	return &inode{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Mode:      mode,
		UID:       s.opts.UID,
		GID:       s.opts.GID,
		Atime:     sec,
		AtimeNsec: nsec,
		Mtime:     sec,
		MtimeNsec: nsec,
		Ctime:     sec,
		CtimeNsec: nsec,
	}
}

func (s *Store) touch(n *inode) {
	now := s.opts.Now()
	n.Mtime, n.MtimeNsec = now.Unix(), int64(now.Nanosecond())
	n.Ctime, n.CtimeNsec = n.Mtime, n.MtimeNsec
}

// splitPath cleans p and returns its components. The root yields none.
func splitPath(p string) ([]string, error) {
	if !strings.HasPrefix(p, "/") {
		return nil, metadata.NewError(metadata.ErrInvalidArgument, "path must be absolute", p)
	}
	clean := path.Clean(p)
	if clean == "/" {
		return nil, nil
	}
	return strings.Split(clean[1:], "/"), nil
}

func getInode(txn Txn, key []byte) (*inode, error) {
	data, err := txn.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeInode(data)
}

func putInode(txn Txn, key []byte, n *inode) error {
	data, err := encodeInode(n)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// lookup resolves p to its inode and storage key.
func (s *Store) lookup(txn Txn, p string) (*inode, []byte, error) {
	parts, err := splitPath(p)
	if err != nil {
		return nil, nil, err
	}

	cur, err := getInode(txn, keyRoot)
	if err != nil {
		return nil, nil, err
	}
	if cur == nil {
		return nil, nil, metadata.NewError(metadata.ErrNotInitialized, "root directory missing", p)
	}
	key := keyRoot

	for _, name := range parts {
		if !cur.isDir() {
			return nil, nil, metadata.NewError(metadata.ErrNotDirectory, "not a directory", p)
		}
		key = keyEntry(cur.ID, name)
		next, err := getInode(txn, key)
		if err != nil {
			return nil, nil, err
		}
		if next == nil {
			return nil, nil, metadata.NewError(metadata.ErrNotFound, "no such file or directory", p)
		}
		cur = next
	}
	return cur, key, nil
}

// lookupParent resolves the directory that contains p.
func (s *Store) lookupParent(txn Txn, p string) (*inode, string, error) {
	parts, err := splitPath(p)
	if err != nil {
		return nil, "", err
	}
	if len(parts) == 0 {
		return nil, "", metadata.NewError(metadata.ErrAlreadyExists, "root directory", p)
	}

	dir, _, err := s.lookup(txn, "/"+strings.Join(parts[:len(parts)-1], "/"))
	if err != nil {
		return nil, "", err
	}
	if !dir.isDir() {
		return nil, "", metadata.NewError(metadata.ErrNotDirectory, "parent is not a directory", p)
	}
	return dir, parts[len(parts)-1], nil
}

// createEntry inserts a new inode at p inside txn.
func (s *Store) createEntry(txn Txn, p string, mode uint32) (*inode, string, error) {
	parent, name, err := s.lookupParent(txn, p)
	if err != nil {
		return nil, "", err
	}

	key := keyEntry(parent.ID, name)
	existing, err := getInode(txn, key)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", metadata.NewError(metadata.ErrAlreadyExists, "file exists", p)
	}

	n := s.newInode(parent.ID, mode)
	if err := putInode(txn, key, n); err != nil {
		return nil, "", err
	}
	return n, name, nil
}

// ============================================================================
// Handle table
// ============================================================================

func (s *Store) register(p string, n *inode, name string, flags int) metadata.FileHandle {
	h := metadata.FileHandle(s.nextHandle.Add(1))

	var pos int64
	if flags&metadata.OpenAppend != 0 {
		pos = n.Size
	}

	s.mu.Lock()
	s.handles[h] = &openFile{
		path:     path.Clean(p),
		parentID: n.ParentID,
		name:     name,
		id:       n.ID,
		flags:    flags,
		pos:      pos,
	}
	s.mu.Unlock()
	return h
}

func (s *Store) handle(h metadata.FileHandle) (openFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	of, ok := s.handles[h]
	if !ok {
		return openFile{}, metadata.NewError(metadata.ErrInvalidHandle, fmt.Sprintf("unknown handle %d", h), "")
	}
	return *of, nil
}

func (s *Store) setPos(h metadata.FileHandle, pos int64) {
	s.mu.Lock()
	if of, ok := s.handles[h]; ok {
		of.pos = pos
	}
	s.mu.Unlock()
}

// resolveHandle loads the inode behind an open handle. A file unlinked while
// open reports ErrNotFound.
func (s *Store) resolveHandle(txn Txn, of openFile) (*inode, []byte, error) {
	key := keyEntry(of.parentID, of.name)
	n, err := getInode(txn, key)
	if err != nil {
		return nil, nil, err
	}
	if n == nil || n.ID != of.id {
		return nil, nil, metadata.NewError(metadata.ErrNotFound, "file removed while open", of.path)
	}
	return n, key, nil
}

func (s *Store) loadData(txn Txn, id string) ([]byte, error) {
	raw, err := txn.Get(keyData(id))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.codec.decode(raw)
}

func (s *Store) storeData(txn Txn, id string, data []byte) error {
	if len(data) == 0 {
		return txn.Delete(keyData(id))
	}
	return txn.Set(keyData(id), s.codec.encode(data))
}
