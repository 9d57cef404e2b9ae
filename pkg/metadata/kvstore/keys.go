package kvstore

// Key Namespace Design
// ====================
//
// Every backend is an ordered key-value engine, so the namespace is encoded
// with prefixed keys. Entries are keyed by (parent ID, name), the layout
// used by table-based metadata services: a directory listing is a single
// prefix scan and a path lookup is one point read per component.
//
// Data Type        Prefix   Key Format                   Value
// ==============================================================================
// Root inode       "r"      r                            inode (XDR)
// Entry            "e:"     e:<parentID>:<name>          inode (XDR)
// Inline data      "d:"     d:<inodeID>                  file bytes, maybe zstd
//
// Inode IDs are random UUIDs. They never change for the life of a file,
// which makes the parent ID usable as a stable bulk-store directory name.

const (
	prefixEntry = "e:"
	prefixData  = "d:"
)

var keyRoot = []byte("r")

func keyEntry(parentID, name string) []byte {
	return []byte(prefixEntry + parentID + ":" + name)
}

// keyEntryPrefix is the scan prefix for all children of a directory.
func keyEntryPrefix(parentID string) []byte {
	return []byte(prefixEntry + parentID + ":")
}

func keyData(id string) []byte {
	return []byte(prefixData + id)
}

// nameFromEntryKey strips the "e:<parentID>:" prefix.
func nameFromEntryKey(key []byte, parentID string) string {
	return string(key[len(prefixEntry)+len(parentID)+1:])
}
