package kvstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/linpawslitap/mds-scaling/pkg/metadata"
)

// inode is the persisted record of a file or directory.
//
// It is XDR encoded so every record has a fixed field order and width,
// independent of the host and of the backend engine.
type inode struct {
	ID        string
	ParentID  string
	Mode      uint32
	UID       uint32
	GID       uint32
	Size      int64
	Atime     int64
	AtimeNsec int64
	Mtime     int64
	MtimeNsec int64
	Ctime     int64
	CtimeNsec int64
	State     uint32
	Link      string
}

func (n *inode) isDir() bool {
	return n.Mode&metadata.ModeTypeMask == metadata.ModeDir
}

func (n *inode) migrated() bool {
	return metadata.FetchState(n.State) == metadata.StateMigrated
}

func encodeInode(n *inode) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, n); err != nil {
		return nil, fmt.Errorf("encode inode %s: %w", n.ID, err)
	}
	return buf.Bytes(), nil
}

func decodeInode(data []byte) (*inode, error) {
	var n inode
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &n); err != nil {
		return nil, fmt.Errorf("decode inode: %w", err)
	}
	return &n, nil
}

// ino derives a stable inode number from the UUID.
func (n *inode) ino() uint64 {
	id, err := uuid.Parse(n.ID)
	if err != nil {
		return 0
	}
	return binary.BigEndian.Uint64(id[:8])
}

func (n *inode) stat() *metadata.RawStat {
	nlink := uint32(1)
	if n.isDir() {
		nlink = 2
	}
	return &metadata.RawStat{
		Ino:       n.ino(),
		Mode:      n.Mode,
		Nlink:     nlink,
		UID:       n.UID,
		GID:       n.GID,
		Size:      n.Size,
		Blksize:   4096,
		Blocks:    (n.Size + 511) / 512,
		Atime:     n.Atime,
		AtimeNsec: n.AtimeNsec,
		Mtime:     n.Mtime,
		MtimeNsec: n.MtimeNsec,
		Ctime:     n.Ctime,
		CtimeNsec: n.CtimeNsec,
	}
}

func (n *inode) info() *metadata.FileInfo {
	return n.stat().Info(n.Link)
}
