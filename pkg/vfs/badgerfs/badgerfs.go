// Package badgerfs provides a BadgerDB-backed implementation of the
// vfs.FileSystem contract: a durable single-export file system whose
// inodes, directory entries and file contents persist across restarts.
//
// Key layout:
//
//	i:<id>          inode record (gob-encoded)
//	d:<dir>/<name>  directory entry → child file ID
//	c:<id>          file contents
//	m:nextid        file ID allocator
//
// File IDs are allocated monotonically and never reused, which keeps
// readdir cookies (file IDs) stable across removals.
package badgerfs

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/quillfs/quillnfs/pkg/vfs"
)

// rootID is the file ID of the exported root directory.
const rootID = 1

// inode is the persisted per-object record.
type inode struct {
	ID     uint64
	Type   vfs.FileType
	Mode   uint32
	Nlink  uint32
	UID    uint32
	GID    uint32
	Size   uint64
	Rdev   vfs.SpecData
	Target string
	Atime  vfs.Time
	Mtime  vfs.Time
	Ctime  vfs.Time
}

// BadgerFS is a durable vfs.FileSystem stored in BadgerDB.
type BadgerFS struct {
	db *badger.DB

	mu       sync.RWMutex
	readOnly bool
}

// Open opens (creating if necessary) a BadgerFS at dir.
func Open(dir string) (*BadgerFS, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}

	fs := &BadgerFS{db: db}
	if err := fs.ensureRoot(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return fs, nil
}

// Close releases the underlying database.
func (b *BadgerFS) Close() error {
	return b.db.Close()
}

// SetReadOnly toggles the advertised capability.
func (b *BadgerFS) SetReadOnly(readOnly bool) {
	b.mu.Lock()
	b.readOnly = readOnly
	b.mu.Unlock()
}

// Capabilities implements vfs.FileSystem.
func (b *BadgerFS) Capabilities() vfs.Capabilities {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.readOnly {
		return vfs.ReadOnly
	}
	return vfs.ReadWrite
}

// RootDir implements vfs.FileSystem.
func (b *BadgerFS) RootDir() uint64 { return rootID }

// ensureRoot creates the root directory on first open.
func (b *BadgerFS) ensureRoot() error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(inodeKey(rootID)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check root inode: %w", err)
		}

		now := nowTime()
		root := &inode{
			ID:    rootID,
			Type:  vfs.TypeDir,
			Mode:  0777,
			Nlink: 2,
			Atime: now,
			Mtime: now,
			Ctime: now,
		}
		if err := putInode(txn, root); err != nil {
			return err
		}
		return putNextID(txn, rootID+1)
	})
}

// ============================================================================
// vfs.FileSystem operations
// ============================================================================

// Lookup implements vfs.FileSystem.
func (b *BadgerFS) Lookup(_ context.Context, dir uint64, name string) (uint64, error) {
	var id uint64
	err := b.db.View(func(txn *badger.Txn) error {
		parent, err := getInode(txn, dir)
		if err != nil {
			return err
		}
		if parent.Type != vfs.TypeDir {
			return vfs.ErrNotDir
		}

		switch name {
		case ".":
			id = dir
			return nil
		case "..":
			if dir == rootID {
				id = rootID
				return nil
			}
		}

		id, err = getDirent(txn, dir, name)
		return err
	})
	return id, err
}

// GetAttr implements vfs.FileSystem.
func (b *BadgerFS) GetAttr(_ context.Context, id uint64) (vfs.FileAttr, error) {
	var attr vfs.FileAttr
	err := b.db.View(func(txn *badger.Txn) error {
		node, err := getInode(txn, id)
		if err != nil {
			return err
		}
		attr = node.attr()
		return nil
	})
	return attr, err
}

// SetAttr implements vfs.FileSystem.
func (b *BadgerFS) SetAttr(_ context.Context, id uint64, attr vfs.SetAttr) (vfs.FileAttr, error) {
	var result vfs.FileAttr
	err := b.db.Update(func(txn *badger.Txn) error {
		node, err := getInode(txn, id)
		if err != nil {
			return err
		}

		if attr.Mode != nil {
			node.Mode = *attr.Mode
		}
		if attr.UID != nil {
			node.UID = *attr.UID
		}
		if attr.GID != nil {
			node.GID = *attr.GID
		}
		if attr.Size != nil {
			if node.Type == vfs.TypeDir {
				return vfs.ErrIsDir
			}
			if err := resizeContent(txn, node, *attr.Size); err != nil {
				return err
			}
			node.Mtime = nowTime()
		}
		applySetTime(&node.Atime, attr.Atime)
		applySetTime(&node.Mtime, attr.Mtime)
		node.Ctime = nowTime()

		if err := putInode(txn, node); err != nil {
			return err
		}
		result = node.attr()
		return nil
	})
	return result, err
}

// Read implements vfs.FileSystem.
func (b *BadgerFS) Read(_ context.Context, id uint64, offset uint64, count uint32) ([]byte, bool, error) {
	var data []byte
	var eof bool
	err := b.db.View(func(txn *badger.Txn) error {
		node, err := getInode(txn, id)
		if err != nil {
			return err
		}
		if node.Type == vfs.TypeDir {
			return vfs.ErrIsDir
		}

		content, err := getContent(txn, id)
		if err != nil {
			return err
		}

		size := uint64(len(content))
		if offset >= size {
			data, eof = []byte{}, true
			return nil
		}
		end := offset + uint64(count)
		if end > size {
			end = size
		}
		data = append([]byte{}, content[offset:end]...)
		eof = end == size
		return nil
	})
	return data, eof, err
}

// Write implements vfs.FileSystem.
func (b *BadgerFS) Write(_ context.Context, id uint64, offset uint64, data []byte) (vfs.FileAttr, error) {
	var result vfs.FileAttr
	err := b.db.Update(func(txn *badger.Txn) error {
		node, err := getInode(txn, id)
		if err != nil {
			return err
		}
		if node.Type == vfs.TypeDir {
			return vfs.ErrIsDir
		}

		content, err := getContent(txn, id)
		if err != nil {
			return err
		}

		end := offset + uint64(len(data))
		if end > uint64(len(content)) {
			content = append(content, make([]byte, end-uint64(len(content)))...)
		}
		copy(content[offset:end], data)

		if err := txn.Set(contentKey(id), content); err != nil {
			return fmt.Errorf("store content: %w", err)
		}

		now := nowTime()
		node.Size = uint64(len(content))
		node.Mtime = now
		node.Ctime = now
		if err := putInode(txn, node); err != nil {
			return err
		}
		result = node.attr()
		return nil
	})
	return result, err
}

// Create implements vfs.FileSystem (UNCHECKED semantics).
func (b *BadgerFS) Create(_ context.Context, dir uint64, name string, attr vfs.SetAttr) (uint64, vfs.FileAttr, error) {
	var id uint64
	var result vfs.FileAttr
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := checkDir(txn, dir); err != nil {
			return err
		}
		if err := validName(name); err != nil {
			return err
		}

		if existingID, err := getDirent(txn, dir, name); err == nil {
			existing, err := getInode(txn, existingID)
			if err != nil {
				return err
			}
			if existing.Type == vfs.TypeDir {
				return vfs.ErrIsDir
			}
			if err := resizeContent(txn, existing, 0); err != nil {
				return err
			}
			applyCreateAttr(existing, attr)
			if err := putInode(txn, existing); err != nil {
				return err
			}
			id, result = existingID, existing.attr()
			return nil
		} else if !errors.Is(err, vfs.ErrNoEnt) {
			return err
		}

		node, err := newInode(txn, vfs.TypeReg, 0644)
		if err != nil {
			return err
		}
		applyCreateAttr(node, attr)
		if err := putInode(txn, node); err != nil {
			return err
		}
		if err := linkDirent(txn, dir, name, node.ID); err != nil {
			return err
		}
		id, result = node.ID, node.attr()
		return nil
	})
	return id, result, err
}

// CreateExclusive implements vfs.FileSystem.
func (b *BadgerFS) CreateExclusive(_ context.Context, dir uint64, name string) (uint64, error) {
	var id uint64
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := checkDir(txn, dir); err != nil {
			return err
		}
		if err := validName(name); err != nil {
			return err
		}
		if _, err := getDirent(txn, dir, name); err == nil {
			return vfs.ErrExist
		} else if !errors.Is(err, vfs.ErrNoEnt) {
			return err
		}

		node, err := newInode(txn, vfs.TypeReg, 0644)
		if err != nil {
			return err
		}
		if err := putInode(txn, node); err != nil {
			return err
		}
		if err := linkDirent(txn, dir, name, node.ID); err != nil {
			return err
		}
		id = node.ID
		return nil
	})
	return id, err
}

// Mkdir implements vfs.FileSystem.
func (b *BadgerFS) Mkdir(_ context.Context, dir uint64, name string) (uint64, vfs.FileAttr, error) {
	var id uint64
	var result vfs.FileAttr
	err := b.db.Update(func(txn *badger.Txn) error {
		parent, err := getInode(txn, dir)
		if err != nil {
			return err
		}
		if parent.Type != vfs.TypeDir {
			return vfs.ErrNotDir
		}
		if err := validName(name); err != nil {
			return err
		}
		if _, err := getDirent(txn, dir, name); err == nil {
			return vfs.ErrExist
		} else if !errors.Is(err, vfs.ErrNoEnt) {
			return err
		}

		node, err := newInode(txn, vfs.TypeDir, 0755)
		if err != nil {
			return err
		}
		node.Nlink = 2
		if err := putInode(txn, node); err != nil {
			return err
		}
		if err := linkDirent(txn, dir, name, node.ID); err != nil {
			return err
		}

		parent.Nlink++
		touchDir(parent)
		if err := putInode(txn, parent); err != nil {
			return err
		}

		id, result = node.ID, node.attr()
		return nil
	})
	return id, result, err
}

// Remove implements vfs.FileSystem.
func (b *BadgerFS) Remove(_ context.Context, dir uint64, name string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		parent, err := getInode(txn, dir)
		if err != nil {
			return err
		}
		if parent.Type != vfs.TypeDir {
			return vfs.ErrNotDir
		}

		id, err := getDirent(txn, dir, name)
		if err != nil {
			return err
		}
		node, err := getInode(txn, id)
		if err != nil {
			return err
		}

		if node.Type == vfs.TypeDir {
			empty, err := dirEmpty(txn, id)
			if err != nil {
				return err
			}
			if !empty {
				return vfs.ErrNotEmpty
			}
			parent.Nlink--
			if err := deleteInode(txn, node); err != nil {
				return err
			}
		} else {
			node.Nlink--
			if node.Nlink == 0 {
				if err := deleteInode(txn, node); err != nil {
					return err
				}
			} else {
				node.Ctime = nowTime()
				if err := putInode(txn, node); err != nil {
					return err
				}
			}
		}

		if err := txn.Delete(direntKey(dir, name)); err != nil {
			return fmt.Errorf("delete dirent: %w", err)
		}
		touchDir(parent)
		return putInode(txn, parent)
	})
}

// Rename implements vfs.FileSystem.
func (b *BadgerFS) Rename(_ context.Context, fromDir uint64, fromName string, toDir uint64, toName string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		from, err := getInode(txn, fromDir)
		if err != nil {
			return err
		}
		to, err := getInode(txn, toDir)
		if err != nil {
			return err
		}
		if from.Type != vfs.TypeDir || to.Type != vfs.TypeDir {
			return vfs.ErrNotDir
		}
		if err := validName(toName); err != nil {
			return err
		}

		id, err := getDirent(txn, fromDir, fromName)
		if err != nil {
			return err
		}

		if targetID, err := getDirent(txn, toDir, toName); err == nil && targetID != id {
			target, err := getInode(txn, targetID)
			if err != nil {
				return err
			}
			if target.Type == vfs.TypeDir {
				empty, err := dirEmpty(txn, targetID)
				if err != nil {
					return err
				}
				if !empty {
					return vfs.ErrNotEmpty
				}
			}
			if err := deleteInode(txn, target); err != nil {
				return err
			}
		} else if err != nil && !errors.Is(err, vfs.ErrNoEnt) {
			return err
		}

		if err := txn.Delete(direntKey(fromDir, fromName)); err != nil {
			return fmt.Errorf("delete source dirent: %w", err)
		}
		if err := linkDirent(txn, toDir, toName, id); err != nil {
			return err
		}

		touchDir(from)
		if err := putInode(txn, from); err != nil {
			return err
		}
		if toDir != fromDir {
			touchDir(to)
			if err := putInode(txn, to); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadDir implements vfs.FileSystem. Entries are ordered by ascending
// file ID so startAfter can resume from any position.
func (b *BadgerFS) ReadDir(_ context.Context, dir uint64, startAfter uint64, maxEntries int) (vfs.ReadDirResult, error) {
	var result vfs.ReadDirResult
	err := b.db.View(func(txn *badger.Txn) error {
		if err := checkDir(txn, dir); err != nil {
			return err
		}

		type childEntry struct {
			id   uint64
			name string
		}
		var children []childEntry

		prefix := direntPrefix(dir)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(prefix):])
			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read dirent: %w", err)
			}
			children = append(children, childEntry{
				id:   binary.BigEndian.Uint64(value),
				name: name,
			})
		}

		sort.Slice(children, func(i, j int) bool { return children[i].id < children[j].id })

		result.End = true
		for _, child := range children {
			if child.id <= startAfter {
				continue
			}
			if maxEntries > 0 && len(result.Entries) >= maxEntries {
				result.End = false
				break
			}
			node, err := getInode(txn, child.id)
			if err != nil {
				return err
			}
			result.Entries = append(result.Entries, vfs.DirEntry{
				FileID: child.id,
				Name:   child.name,
				Attr:   node.attr(),
			})
		}
		return nil
	})
	return result, err
}

// Symlink implements vfs.FileSystem.
func (b *BadgerFS) Symlink(_ context.Context, dir uint64, name string, target string, attr vfs.SetAttr) (uint64, vfs.FileAttr, error) {
	var id uint64
	var result vfs.FileAttr
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := checkDir(txn, dir); err != nil {
			return err
		}
		if err := validName(name); err != nil {
			return err
		}
		if _, err := getDirent(txn, dir, name); err == nil {
			return vfs.ErrExist
		} else if !errors.Is(err, vfs.ErrNoEnt) {
			return err
		}

		node, err := newInode(txn, vfs.TypeLnk, 0777)
		if err != nil {
			return err
		}
		node.Target = target
		node.Size = uint64(len(target))
		applyCreateAttr(node, attr)
		if err := putInode(txn, node); err != nil {
			return err
		}
		if err := linkDirent(txn, dir, name, node.ID); err != nil {
			return err
		}
		id, result = node.ID, node.attr()
		return nil
	})
	return id, result, err
}

// Readlink implements vfs.FileSystem.
func (b *BadgerFS) Readlink(_ context.Context, id uint64) (string, error) {
	var target string
	err := b.db.View(func(txn *badger.Txn) error {
		node, err := getInode(txn, id)
		if err != nil {
			return err
		}
		if node.Type != vfs.TypeLnk {
			return vfs.ErrInval
		}
		target = node.Target
		return nil
	})
	return target, err
}

// Link implements vfs.FileSystem.
func (b *BadgerFS) Link(_ context.Context, id uint64, dir uint64, name string) (vfs.FileAttr, error) {
	var result vfs.FileAttr
	err := b.db.Update(func(txn *badger.Txn) error {
		node, err := getInode(txn, id)
		if err != nil {
			return err
		}
		if node.Type == vfs.TypeDir {
			return vfs.ErrIsDir
		}

		parent, err := getInode(txn, dir)
		if err != nil {
			return err
		}
		if parent.Type != vfs.TypeDir {
			return vfs.ErrNotDir
		}
		if err := validName(name); err != nil {
			return err
		}
		if _, err := getDirent(txn, dir, name); err == nil {
			return vfs.ErrExist
		} else if !errors.Is(err, vfs.ErrNoEnt) {
			return err
		}

		if err := linkDirent(txn, dir, name, id); err != nil {
			return err
		}
		node.Nlink++
		node.Ctime = nowTime()
		if err := putInode(txn, node); err != nil {
			return err
		}
		touchDir(parent)
		if err := putInode(txn, parent); err != nil {
			return err
		}
		result = node.attr()
		return nil
	})
	return result, err
}

// Mknod implements vfs.FileSystem.
func (b *BadgerFS) Mknod(_ context.Context, dir uint64, name string, ftype vfs.FileType, spec vfs.SpecData, attr vfs.SetAttr) (uint64, vfs.FileAttr, error) {
	switch ftype {
	case vfs.TypeChr, vfs.TypeBlk, vfs.TypeSock, vfs.TypeFifo:
	default:
		return 0, vfs.FileAttr{}, vfs.ErrBadType
	}

	var id uint64
	var result vfs.FileAttr
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := checkDir(txn, dir); err != nil {
			return err
		}
		if err := validName(name); err != nil {
			return err
		}
		if _, err := getDirent(txn, dir, name); err == nil {
			return vfs.ErrExist
		} else if !errors.Is(err, vfs.ErrNoEnt) {
			return err
		}

		node, err := newInode(txn, ftype, 0644)
		if err != nil {
			return err
		}
		node.Rdev = spec
		applyCreateAttr(node, attr)
		if err := putInode(txn, node); err != nil {
			return err
		}
		if err := linkDirent(txn, dir, name, node.ID); err != nil {
			return err
		}
		id, result = node.ID, node.attr()
		return nil
	})
	return id, result, err
}

// Commit implements vfs.FileSystem. Badger writes are synced by the
// transaction commit, so this just reports fresh attributes.
func (b *BadgerFS) Commit(ctx context.Context, id uint64, _ uint64, _ uint32) (vfs.FileAttr, error) {
	return b.GetAttr(ctx, id)
}
