package badgerfs

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/quillfs/quillnfs/pkg/vfs"
)

// Key construction. IDs are big-endian so keys under one prefix sort
// numerically, and dirent keys end with the entry name after a separator
// that valid names cannot contain.

func inodeKey(id uint64) []byte {
	key := make([]byte, 2+8)
	copy(key, "i:")
	binary.BigEndian.PutUint64(key[2:], id)
	return key
}

func contentKey(id uint64) []byte {
	key := make([]byte, 2+8)
	copy(key, "c:")
	binary.BigEndian.PutUint64(key[2:], id)
	return key
}

func direntPrefix(dir uint64) []byte {
	prefix := make([]byte, 2+8+1)
	copy(prefix, "d:")
	binary.BigEndian.PutUint64(prefix[2:], dir)
	prefix[10] = '/'
	return prefix
}

func direntKey(dir uint64, name string) []byte {
	return append(direntPrefix(dir), name...)
}

var nextIDKey = []byte("m:nextid")

// ============================================================================
// Record codecs
// ============================================================================

func encodeInode(node *inode) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(node); err != nil {
		return nil, fmt.Errorf("encode inode %d: %w", node.ID, err)
	}
	return buf.Bytes(), nil
}

func decodeInode(data []byte) (*inode, error) {
	node := &inode{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(node); err != nil {
		return nil, fmt.Errorf("decode inode: %w", err)
	}
	return node, nil
}

// ============================================================================
// Transaction helpers
// ============================================================================

func getInode(txn *badger.Txn, id uint64) (*inode, error) {
	item, err := txn.Get(inodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, vfs.ErrNoEnt
	}
	if err != nil {
		return nil, fmt.Errorf("get inode %d: %w", id, err)
	}

	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("read inode %d: %w", id, err)
	}
	return decodeInode(data)
}

func putInode(txn *badger.Txn, node *inode) error {
	data, err := encodeInode(node)
	if err != nil {
		return err
	}
	if err := txn.Set(inodeKey(node.ID), data); err != nil {
		return fmt.Errorf("store inode %d: %w", node.ID, err)
	}
	return nil
}

// deleteInode removes an inode and its content.
func deleteInode(txn *badger.Txn, node *inode) error {
	if err := txn.Delete(inodeKey(node.ID)); err != nil {
		return fmt.Errorf("delete inode %d: %w", node.ID, err)
	}
	if err := txn.Delete(contentKey(node.ID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete content %d: %w", node.ID, err)
	}
	return nil
}

func getDirent(txn *badger.Txn, dir uint64, name string) (uint64, error) {
	item, err := txn.Get(direntKey(dir, name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, vfs.ErrNoEnt
	}
	if err != nil {
		return 0, fmt.Errorf("get dirent %d/%s: %w", dir, name, err)
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		return 0, fmt.Errorf("read dirent %d/%s: %w", dir, name, err)
	}
	return binary.BigEndian.Uint64(value), nil
}

func linkDirent(txn *badger.Txn, dir uint64, name string, id uint64) error {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, id)
	if err := txn.Set(direntKey(dir, name), value); err != nil {
		return fmt.Errorf("store dirent %d/%s: %w", dir, name, err)
	}
	return nil
}

// dirEmpty reports whether a directory has no entries.
func dirEmpty(txn *badger.Txn, dir uint64) (bool, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = direntPrefix(dir)
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Rewind()
	return !it.Valid(), nil
}

// checkDir verifies an ID names an existing directory.
func checkDir(txn *badger.Txn, dir uint64) error {
	node, err := getInode(txn, dir)
	if err != nil {
		return err
	}
	if node.Type != vfs.TypeDir {
		return vfs.ErrNotDir
	}
	return nil
}

// newInode allocates the next file ID and builds an inode skeleton.
func newInode(txn *badger.Txn, ftype vfs.FileType, mode uint32) (*inode, error) {
	id, err := allocateID(txn)
	if err != nil {
		return nil, err
	}
	now := nowTime()
	return &inode{
		ID:    id,
		Type:  ftype,
		Mode:  mode,
		Nlink: 1,
		Atime: now,
		Mtime: now,
		Ctime: now,
	}, nil
}

func allocateID(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get(nextIDKey)
	if err != nil {
		return 0, fmt.Errorf("get id allocator: %w", err)
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return 0, fmt.Errorf("read id allocator: %w", err)
	}

	id := binary.BigEndian.Uint64(value)
	if err := putNextID(txn, id+1); err != nil {
		return 0, err
	}
	return id, nil
}

func putNextID(txn *badger.Txn, next uint64) error {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, next)
	if err := txn.Set(nextIDKey, value); err != nil {
		return fmt.Errorf("store id allocator: %w", err)
	}
	return nil
}

// resizeContent grows or truncates a file's content and keeps the inode's
// size in sync. The caller persists the inode.
func resizeContent(txn *badger.Txn, node *inode, size uint64) error {
	content, err := getContent(txn, node.ID)
	if err != nil {
		return err
	}

	switch {
	case size > uint64(len(content)):
		content = append(content, make([]byte, size-uint64(len(content)))...)
	case size < uint64(len(content)):
		content = content[:size]
	default:
		node.Size = size
		return nil
	}

	if err := txn.Set(contentKey(node.ID), content); err != nil {
		return fmt.Errorf("store content %d: %w", node.ID, err)
	}
	node.Size = size
	return nil
}

func getContent(txn *badger.Txn, id uint64) ([]byte, error) {
	item, err := txn.Get(contentKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content %d: %w", id, err)
	}
	return item.ValueCopy(nil)
}

// ============================================================================
// Shared node helpers
// ============================================================================

func (n *inode) attr() vfs.FileAttr {
	return vfs.FileAttr{
		Type:   n.Type,
		Mode:   n.Mode,
		Nlink:  n.Nlink,
		UID:    n.UID,
		GID:    n.GID,
		Size:   n.Size,
		Used:   n.Size,
		Rdev:   n.Rdev,
		Fsid:   1,
		FileID: n.ID,
		Atime:  n.Atime,
		Mtime:  n.Mtime,
		Ctime:  n.Ctime,
	}
}

func touchDir(dir *inode) {
	now := nowTime()
	dir.Mtime = now
	dir.Ctime = now
}

func applyCreateAttr(node *inode, attr vfs.SetAttr) {
	if attr.Mode != nil {
		node.Mode = *attr.Mode
	}
	if attr.UID != nil {
		node.UID = *attr.UID
	}
	if attr.GID != nil {
		node.GID = *attr.GID
	}
	applySetTime(&node.Atime, attr.Atime)
	applySetTime(&node.Mtime, attr.Mtime)
}

func applySetTime(dst *vfs.Time, st vfs.SetTime) {
	switch st.How {
	case vfs.SetToServerTime:
		*dst = nowTime()
	case vfs.SetToClientTime:
		*dst = st.Time
	}
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." {
		return vfs.ErrInval
	}
	if strings.ContainsRune(name, '/') {
		return vfs.ErrInval
	}
	if len(name) > 255 {
		return vfs.ErrNameTooLong
	}
	return nil
}

func nowTime() vfs.Time {
	now := time.Now()
	return vfs.Time{
		Seconds:  uint32(now.Unix()),
		Nseconds: uint32(now.Nanosecond()),
	}
}
