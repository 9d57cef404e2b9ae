package kvstore

import (
	"bytes"
	"context"
	"errors"

	"github.com/linpawslitap/mds-scaling/pkg/metadata"
)

// dirLister reads directory entries one page per read transaction, so no
// transaction stays open between calls and a large directory is never held
// in memory at once.
//
// Each page resumes at the key following the last one returned. Entries
// added or removed behind the cursor during iteration are not seen; entries
// ahead of it are. No entry is returned twice.
type dirLister struct {
	ctx    context.Context
	store  *Store
	dirID  string
	prefix []byte

	names []string
	infos []metadata.FileInfo
	pos   int

	// next is the first key of the following page, nil when this page is
	// the last.
	next []byte

	released bool
	err      error
}

var _ metadata.Lister = (*dirLister)(nil)

// readPage fills the lister with up to ListPageSize entries starting at
// start, and remembers where the following page begins.
func (l *dirLister) readPage(txn Txn, start []byte) error {
	limit := l.store.opts.ListPageSize
	l.names = l.names[:0]
	l.infos = l.infos[:0]
	l.pos = 0
	l.next = nil

	err := txn.Scan(l.prefix, start, func(key, value []byte) error {
		if len(l.names) == limit {
			l.next = bytes.Clone(key)
			return errStopScan
		}
		child, err := decodeInode(value)
		if err != nil {
			return err
		}
		l.names = append(l.names, nameFromEntryKey(key, l.dirID))
		l.infos = append(l.infos, *child.info())
		return nil
	})
	if errors.Is(err, errStopScan) {
		return nil
	}
	return err
}

func (l *dirLister) Valid() bool {
	return !l.released && l.pos < len(l.names)
}

func (l *dirLister) Entry() (string, metadata.FileInfo) {
	return l.names[l.pos], l.infos[l.pos]
}

func (l *dirLister) Next() {
	if l.released {
		return
	}
	l.pos++
	if l.pos < len(l.names) {
		return
	}
	if l.next == nil {
		l.Release()
		return
	}

	start := l.next
	err := l.store.check(l.ctx)
	if err == nil {
		err = l.store.backend.View(l.ctx, func(txn Txn) error {
			return l.readPage(txn, start)
		})
	}
	if err != nil {
		l.err = err
		l.Release()
		return
	}
	if len(l.names) == 0 {
		l.Release()
	}
}

func (l *dirLister) Release() {
	l.released = true
	l.names = nil
	l.infos = nil
	l.next = nil
}

func (l *dirLister) Err() error {
	return l.err
}
