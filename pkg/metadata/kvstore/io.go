package kvstore

import (
	"context"
	"fmt"

	"github.com/linpawslitap/mds-scaling/pkg/metadata"
)

const accessModeMask = metadata.OpenReadOnly | metadata.OpenWriteOnly | metadata.OpenReadWrite

// Open opens an existing file, or creates it when flags carry OpenCreate.
// OpenTruncate drops inline content; OpenAppend positions at the end.
func (s *Store) Open(ctx context.Context, p string, flags int) (metadata.FileHandle, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	if parts, err := splitPath(p); err != nil {
		return 0, err
	} else if len(parts) == 0 {
		return 0, metadata.NewError(metadata.ErrIsDirectory, "is a directory", p)
	}

	var (
		n    *inode
		name string
	)
	err := s.backend.Update(ctx, func(txn Txn) error {
		parent, base, err := s.lookupParent(txn, p)
		if err != nil {
			return err
		}
		name = base
		key := keyEntry(parent.ID, name)

		n, err = getInode(txn, key)
		if err != nil {
			return err
		}
		if n == nil {
			if flags&metadata.OpenCreate == 0 {
				return metadata.NewError(metadata.ErrNotFound, "no such file or directory", p)
			}
			n = s.newInode(parent.ID, metadata.ModeRegular|0o644)
			return putInode(txn, key, n)
		}

		if n.isDir() {
			return metadata.NewError(metadata.ErrIsDirectory, "is a directory", p)
		}
		if flags&metadata.OpenTruncate != 0 && flags&accessModeMask != metadata.OpenReadOnly {
			if n.migrated() {
				return metadata.NewError(metadata.ErrMigrated, "cannot truncate migrated file", p)
			}
			if err := s.storeData(txn, n.ID, nil); err != nil {
				return err
			}
			n.Size = 0
			s.touch(n)
			return putInode(txn, key, n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return s.register(p, n, name, flags), nil
}

// Read returns up to size inline bytes from the handle position.
func (s *Store) Read(ctx context.Context, h metadata.FileHandle, size int) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	of, err := s.handle(h)
	if err != nil {
		return nil, err
	}
	if of.flags&accessModeMask == metadata.OpenWriteOnly {
		return nil, metadata.NewError(metadata.ErrInvalidArgument, "handle not open for reading", of.path)
	}
	if size < 0 {
		return nil, metadata.NewError(metadata.ErrInvalidArgument, "negative read size", of.path)
	}

	var out []byte
	err = s.backend.View(ctx, func(txn Txn) error {
		n, _, err := s.resolveHandle(txn, of)
		if err != nil {
			return err
		}
		if n.migrated() {
			return metadata.NewError(metadata.ErrMigrated, "file data migrated", of.path)
		}
		data, err := s.loadData(txn, n.ID)
		if err != nil {
			return err
		}
		if of.pos >= int64(len(data)) {
			out = []byte{}
			return nil
		}
		end := min(of.pos+int64(size), int64(len(data)))
		out = data[of.pos:end]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.setPos(h, of.pos+int64(len(out)))
	return out, nil
}

// Write stores data at the handle position, extending the file as needed.
func (s *Store) Write(ctx context.Context, h metadata.FileHandle, data []byte) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	of, err := s.handle(h)
	if err != nil {
		return 0, err
	}
	if of.flags&accessModeMask == metadata.OpenReadOnly {
		return 0, metadata.NewError(metadata.ErrInvalidArgument, "handle not open for writing", of.path)
	}
	if len(data) == 0 {
		return 0, nil
	}

	err = s.backend.Update(ctx, func(txn Txn) error {
		n, key, err := s.resolveHandle(txn, of)
		if err != nil {
			return err
		}
		if n.migrated() {
			return metadata.NewError(metadata.ErrMigrated, "file data migrated", of.path)
		}
		cur, err := s.loadData(txn, n.ID)
		if err != nil {
			return err
		}

		end := of.pos + int64(len(data))
		if end > int64(len(cur)) {
			grown := make([]byte, end)
			copy(grown, cur)
			cur = grown
		}
		copy(cur[of.pos:], data)

		if err := s.storeData(txn, n.ID, cur); err != nil {
			return err
		}
		n.Size = int64(len(cur))
		s.touch(n)
		return putInode(txn, key, n)
	})
	if err != nil {
		return 0, err
	}

	s.setPos(h, of.pos+int64(len(data)))
	return len(data), nil
}

func (s *Store) Close(ctx context.Context, h metadata.FileHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handles[h]; !ok {
		return metadata.NewError(metadata.ErrInvalidHandle, fmt.Sprintf("unknown handle %d", h), "")
	}
	delete(s.handles, h)
	return nil
}

// fetch fills the reply for n. Inline content larger than capacity is an
// error rather than a silent truncation.
func (s *Store) fetch(txn Txn, n *inode, p string, capacity int) ([]byte, metadata.FetchReply, error) {
	if n.isDir() {
		return nil, metadata.FetchReply{}, metadata.NewError(metadata.ErrIsDirectory, "is a directory", p)
	}

	if n.migrated() {
		if len(n.Link) > capacity {
			return nil, metadata.FetchReply{}, metadata.NewError(metadata.ErrBufferTooSmall, "pointer exceeds buffer", p)
		}
		return []byte(n.Link), metadata.FetchReply{State: metadata.StateMigrated, BufLen: len(n.Link)}, nil
	}

	if n.Size > int64(capacity) {
		return nil, metadata.FetchReply{}, metadata.NewError(metadata.ErrBufferTooSmall,
			fmt.Sprintf("inline size %d exceeds buffer %d", n.Size, capacity), p)
	}
	data, err := s.loadData(txn, n.ID)
	if err != nil {
		return nil, metadata.FetchReply{}, err
	}
	return data, metadata.FetchReply{State: metadata.StateInline, BufLen: len(data)}, nil
}

func (s *Store) Fetch(ctx context.Context, p string, capacity int) ([]byte, metadata.FetchReply, error) {
	if err := s.check(ctx); err != nil {
		return nil, metadata.FetchReply{}, err
	}

	var (
		buf   []byte
		reply metadata.FetchReply
	)
	err := s.backend.View(ctx, func(txn Txn) error {
		n, _, err := s.lookup(txn, p)
		if err != nil {
			return err
		}
		buf, reply, err = s.fetch(txn, n, p, capacity)
		return err
	})
	return buf, reply, err
}

func (s *Store) ReadAll(ctx context.Context, h metadata.FileHandle, capacity int) ([]byte, metadata.FetchReply, error) {
	if err := s.check(ctx); err != nil {
		return nil, metadata.FetchReply{}, err
	}
	of, err := s.handle(h)
	if err != nil {
		return nil, metadata.FetchReply{}, err
	}

	var (
		buf   []byte
		reply metadata.FetchReply
	)
	err = s.backend.View(ctx, func(txn Txn) error {
		n, _, err := s.resolveHandle(txn, of)
		if err != nil {
			return err
		}
		buf, reply, err = s.fetch(txn, n, of.path, capacity)
		return err
	})
	return buf, reply, err
}

// WriteLink switches the handle's file to the migrated state. The inline
// bytes are dropped in the same transaction that records the pointer.
func (s *Store) WriteLink(ctx context.Context, h metadata.FileHandle, target string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if target == "" {
		return metadata.NewError(metadata.ErrInvalidArgument, "empty migration pointer", "")
	}
	of, err := s.handle(h)
	if err != nil {
		return err
	}

	return s.backend.Update(ctx, func(txn Txn) error {
		n, key, err := s.resolveHandle(txn, of)
		if err != nil {
			return err
		}
		if err := txn.Delete(keyData(n.ID)); err != nil {
			return err
		}
		n.State = uint32(metadata.StateMigrated)
		n.Link = target
		s.touch(n)
		return putInode(txn, key, n)
	})
}

func (s *Store) UpdateLink(ctx context.Context, p string, target string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if target == "" {
		return metadata.NewError(metadata.ErrInvalidArgument, "empty migration pointer", p)
	}

	return s.backend.Update(ctx, func(txn Txn) error {
		n, key, err := s.lookup(txn, p)
		if err != nil {
			return err
		}
		if !n.migrated() {
			return metadata.NewError(metadata.ErrInvalidArgument, "file is not migrated", p)
		}
		n.Link = target
		s.touch(n)
		return putInode(txn, key, n)
	})
}

func (s *Store) GetParentID(ctx context.Context, h metadata.FileHandle) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}
	of, err := s.handle(h)
	if err != nil {
		return "", err
	}
	return of.parentID, nil
}
