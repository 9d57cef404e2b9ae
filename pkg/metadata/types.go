package metadata

import "os"

// FileHandle identifies an open file inside a MetadataStore.
//
// Handles are allocated from a per-store counter starting at 1. Any value
// <= 0 is invalid and is what a failed create reports.
type FileHandle int64

// Valid reports whether h can refer to an open file.
func (h FileHandle) Valid() bool {
	return h > 0
}

// Mode type bits, matching the POSIX S_IF* values.
const (
	ModeTypeMask uint32 = 0o170000
	ModeDir      uint32 = 0o040000
	ModeRegular  uint32 = 0o100000
	ModePermMask uint32 = 0o7777
)

// Open flags understood by MetadataStore.Open. They alias the os package
// values so callers can pass os.O_* directly.
const (
	OpenReadOnly  = os.O_RDONLY
	OpenWriteOnly = os.O_WRONLY
	OpenReadWrite = os.O_RDWR
	OpenCreate    = os.O_CREATE
	OpenTruncate  = os.O_TRUNC
	OpenAppend    = os.O_APPEND
)

// FetchState tells the reader which backend holds a file's bytes.
type FetchState uint32

const (
	// StateInline means the bytes are stored in the MetadataStore itself.
	StateInline FetchState = 0

	// StateMigrated means the bytes live in the bulk store and the fetch
	// buffer carries the migration pointer instead of data.
	StateMigrated FetchState = 1
)

func (s FetchState) String() string {
	if s == StateInline {
		return "inline"
	}
	return "migrated"
}

// FetchReply is the out-parameter of Fetch and ReadAll.
type FetchReply struct {
	State FetchState

	// BufLen is the number of valid bytes in the returned buffer.
	BufLen int
}

// FileInfo is the status record returned by GetInfo.
type FileInfo struct {
	// Permission holds the low permission bits (mode & 0777).
	Permission uint16

	IsDir bool
	UID   uint32
	GID   uint32

	// Size is the inline size as recorded by the MetadataStore. For
	// migrated files it is the size at the moment of migration.
	Size int64

	// Atime and Ctime are unix seconds.
	Atime int64
	Ctime int64

	// Link is the migration pointer, empty when the file is inline.
	Link string
}

// Migrated reports whether the file's bytes live in the bulk store.
func (fi *FileInfo) Migrated() bool {
	return fi.Link != ""
}

// RawStat is the fixed-width stat record returned by GetAttr.
type RawStat struct {
	Dev       uint64
	Ino       uint64
	Mode      uint32
	Nlink     uint32
	UID       uint32
	GID       uint32
	Rdev      uint64
	Size      int64
	Blksize   int64
	Blocks    int64
	Atime     int64
	AtimeNsec int64
	Mtime     int64
	MtimeNsec int64
	Ctime     int64
	CtimeNsec int64
}

// IsDir reports whether the stat describes a directory.
func (s *RawStat) IsDir() bool {
	return s.Mode&ModeTypeMask == ModeDir
}

// Info converts a RawStat into the reduced FileInfo view.
func (s *RawStat) Info(link string) *FileInfo {
	return &FileInfo{
		Permission: uint16(s.Mode & 0o777),
		IsDir:      s.IsDir(),
		UID:        s.UID,
		GID:        s.GID,
		Size:       s.Size,
		Atime:      s.Atime,
		Ctime:      s.Ctime,
		Link:       link,
	}
}
