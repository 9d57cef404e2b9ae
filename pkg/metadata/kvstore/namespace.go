package kvstore

import (
	"context"
	"errors"

	"github.com/linpawslitap/mds-scaling/pkg/metadata"
)

var errStopScan = errors.New("stop scan")

func (s *Store) Mknod(ctx context.Context, p string, mode uint32) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.backend.Update(ctx, func(txn Txn) error {
		_, _, err := s.createEntry(txn, p, metadata.ModeRegular|mode&metadata.ModePermMask)
		return err
	})
}

// Create makes an empty regular file and opens it write-only.
func (s *Store) Create(ctx context.Context, p string, mode uint32) (metadata.FileHandle, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	var (
		n    *inode
		name string
	)
	err := s.backend.Update(ctx, func(txn Txn) error {
		var err error
		n, name, err = s.createEntry(txn, p, metadata.ModeRegular|mode&metadata.ModePermMask)
		return err
	})
	if err != nil {
		return 0, err
	}
	return s.register(p, n, name, metadata.OpenWriteOnly|metadata.OpenCreate), nil
}

func (s *Store) Mkdir(ctx context.Context, p string, mode uint32) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.backend.Update(ctx, func(txn Txn) error {
		_, _, err := s.createEntry(txn, p, metadata.ModeDir|mode&metadata.ModePermMask)
		return err
	})
}

func (s *Store) Rmdir(ctx context.Context, p string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.backend.Update(ctx, func(txn Txn) error {
		n, key, err := s.lookup(txn, p)
		if err != nil {
			return err
		}
		if n.ParentID == "" {
			return metadata.NewError(metadata.ErrInvalidArgument, "cannot remove root directory", p)
		}
		if !n.isDir() {
			return metadata.NewError(metadata.ErrNotDirectory, "not a directory", p)
		}

		empty := true
		err = txn.Scan(keyEntryPrefix(n.ID), nil, func(_, _ []byte) error {
			empty = false
			return errStopScan
		})
		if err != nil && !errors.Is(err, errStopScan) {
			return err
		}
		if !empty {
			return metadata.NewError(metadata.ErrNotEmpty, "directory not empty", p)
		}
		return txn.Delete(key)
	})
}

// Unlink removes a file. A bulk object referenced by the migration pointer
// is not touched.
func (s *Store) Unlink(ctx context.Context, p string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.backend.Update(ctx, func(txn Txn) error {
		n, key, err := s.lookup(txn, p)
		if err != nil {
			return err
		}
		if n.isDir() {
			return metadata.NewError(metadata.ErrIsDirectory, "is a directory", p)
		}
		if err := txn.Delete(keyData(n.ID)); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func (s *Store) GetAttr(ctx context.Context, p string) (*metadata.RawStat, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var st *metadata.RawStat
	err := s.backend.View(ctx, func(txn Txn) error {
		n, _, err := s.lookup(txn, p)
		if err != nil {
			return err
		}
		st = n.stat()
		return nil
	})
	return st, err
}

func (s *Store) GetInfo(ctx context.Context, p string) (*metadata.FileInfo, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var fi *metadata.FileInfo
	err := s.backend.View(ctx, func(txn Txn) error {
		n, _, err := s.lookup(txn, p)
		if err != nil {
			return err
		}
		fi = n.info()
		return nil
	})
	return fi, err
}

// List returns a lazy lister over the children of a directory. The first
// page is read together with the directory lookup; later pages are read as
// the caller advances.
func (s *Store) List(ctx context.Context, p string) (metadata.Lister, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	l := &dirLister{ctx: ctx, store: s}
	err := s.backend.View(ctx, func(txn Txn) error {
		dir, _, err := s.lookup(txn, p)
		if err != nil {
			return err
		}
		if !dir.isDir() {
			return metadata.NewError(metadata.ErrNotDirectory, "not a directory", p)
		}

		l.dirID = dir.ID
		l.prefix = keyEntryPrefix(dir.ID)
		return l.readPage(txn, nil)
	})
	if err != nil {
		return nil, err
	}
	if len(l.names) == 0 {
		l.Release()
	}
	return l, nil
}
