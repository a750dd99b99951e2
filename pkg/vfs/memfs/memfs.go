// Package memfs provides an in-memory reference implementation of the
// vfs.FileSystem contract. It backs the demo server and the handler test
// suites; everything lives in process memory and vanishes on exit.
package memfs

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quillfs/quillnfs/pkg/vfs"
)

// rootID is the file ID of the exported root directory.
const rootID = 1

// node is one file-system object. Directory nodes keep a name→ID map;
// regular files keep their bytes; symlinks keep their target.
type node struct {
	id     uint64
	ftype  vfs.FileType
	mode   uint32
	nlink  uint32
	uid    uint32
	gid    uint32
	rdev   vfs.SpecData
	data   []byte
	target string
	atime  vfs.Time
	mtime  vfs.Time
	ctime  vfs.Time

	// children is non-nil only for directories.
	children map[string]uint64
}

// MemFS is an in-memory file system. All operations are guarded by a
// single RWMutex, which satisfies the contract's concurrency requirement
// at the cost of serializing mutations — fine for a reference backend.
type MemFS struct {
	mu       sync.RWMutex
	nodes    map[uint64]*node
	nextID   uint64
	readOnly bool
}

// New creates an empty read-write MemFS with just the root directory.
func New() *MemFS {
	fs := &MemFS{
		nodes: make(map[uint64]*node),
	}
	now := nowTime()
	fs.nodes[rootID] = &node{
		id:       rootID,
		ftype:    vfs.TypeDir,
		mode:     0777,
		nlink:    2,
		atime:    now,
		mtime:    now,
		ctime:    now,
		children: make(map[string]uint64),
	}
	fs.nextID = rootID + 1
	return fs
}

// SetReadOnly toggles the advertised capability. Mutating procedures are
// refused by the server core before reaching the file system when set.
func (m *MemFS) SetReadOnly(readOnly bool) {
	m.mu.Lock()
	m.readOnly = readOnly
	m.mu.Unlock()
}

// Capabilities implements vfs.FileSystem.
func (m *MemFS) Capabilities() vfs.Capabilities {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.readOnly {
		return vfs.ReadOnly
	}
	return vfs.ReadWrite
}

// RootDir implements vfs.FileSystem.
func (m *MemFS) RootDir() uint64 { return rootID }

// Lookup implements vfs.FileSystem.
func (m *MemFS) Lookup(_ context.Context, dir uint64, name string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	parent, err := m.dirNode(dir)
	if err != nil {
		return 0, err
	}
	switch name {
	case ".":
		return dir, nil
	case "..":
		// Single export, flat handle space: the root is its own parent
		// and interior ".." entries are resolved by the client.
		if dir == rootID {
			return rootID, nil
		}
	}
	id, ok := parent.children[name]
	if !ok {
		return 0, vfs.ErrNoEnt
	}
	return id, nil
}

// GetAttr implements vfs.FileSystem.
func (m *MemFS) GetAttr(_ context.Context, id uint64) (vfs.FileAttr, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nodes[id]
	if !ok {
		return vfs.FileAttr{}, vfs.ErrNoEnt
	}
	return n.attr(), nil
}

// SetAttr implements vfs.FileSystem.
func (m *MemFS) SetAttr(_ context.Context, id uint64, attr vfs.SetAttr) (vfs.FileAttr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok {
		return vfs.FileAttr{}, vfs.ErrNoEnt
	}

	if attr.Mode != nil {
		n.mode = *attr.Mode
	}
	if attr.UID != nil {
		n.uid = *attr.UID
	}
	if attr.GID != nil {
		n.gid = *attr.GID
	}
	if attr.Size != nil {
		if n.ftype == vfs.TypeDir {
			return vfs.FileAttr{}, vfs.ErrIsDir
		}
		n.resize(*attr.Size)
		n.mtime = nowTime()
	}
	applySetTime(&n.atime, attr.Atime)
	applySetTime(&n.mtime, attr.Mtime)
	n.ctime = nowTime()

	return n.attr(), nil
}

// Read implements vfs.FileSystem.
func (m *MemFS) Read(_ context.Context, id uint64, offset uint64, count uint32) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nodes[id]
	if !ok {
		return nil, false, vfs.ErrNoEnt
	}
	if n.ftype == vfs.TypeDir {
		return nil, false, vfs.ErrIsDir
	}

	size := uint64(len(n.data))
	if offset >= size {
		return []byte{}, true, nil
	}

	end := offset + uint64(count)
	if end > size {
		end = size
	}

	out := make([]byte, end-offset)
	copy(out, n.data[offset:end])
	return out, end == size, nil
}

// Write implements vfs.FileSystem.
func (m *MemFS) Write(_ context.Context, id uint64, offset uint64, data []byte) (vfs.FileAttr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok {
		return vfs.FileAttr{}, vfs.ErrNoEnt
	}
	if n.ftype == vfs.TypeDir {
		return vfs.FileAttr{}, vfs.ErrIsDir
	}

	end := offset + uint64(len(data))
	if end > uint64(len(n.data)) {
		n.resize(end)
	}
	copy(n.data[offset:end], data)

	now := nowTime()
	n.mtime = now
	n.ctime = now

	return n.attr(), nil
}

// Create implements vfs.FileSystem (UNCHECKED semantics: an existing file
// of the same name is truncated).
func (m *MemFS) Create(_ context.Context, dir uint64, name string, attr vfs.SetAttr) (uint64, vfs.FileAttr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, err := m.dirNode(dir)
	if err != nil {
		return 0, vfs.FileAttr{}, err
	}
	if err := validName(name); err != nil {
		return 0, vfs.FileAttr{}, err
	}

	if existingID, ok := parent.children[name]; ok {
		existing := m.nodes[existingID]
		if existing.ftype == vfs.TypeDir {
			return 0, vfs.FileAttr{}, vfs.ErrIsDir
		}
		existing.resize(0)
		m.applyCreateAttr(existing, attr)
		return existingID, existing.attr(), nil
	}

	n := m.newNode(vfs.TypeReg, 0644)
	m.applyCreateAttr(n, attr)
	m.linkChild(parent, name, n)
	return n.id, n.attr(), nil
}

// CreateExclusive implements vfs.FileSystem.
func (m *MemFS) CreateExclusive(_ context.Context, dir uint64, name string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, err := m.dirNode(dir)
	if err != nil {
		return 0, err
	}
	if err := validName(name); err != nil {
		return 0, err
	}
	if _, ok := parent.children[name]; ok {
		return 0, vfs.ErrExist
	}

	n := m.newNode(vfs.TypeReg, 0644)
	m.linkChild(parent, name, n)
	return n.id, nil
}

// Mkdir implements vfs.FileSystem.
func (m *MemFS) Mkdir(_ context.Context, dir uint64, name string) (uint64, vfs.FileAttr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, err := m.dirNode(dir)
	if err != nil {
		return 0, vfs.FileAttr{}, err
	}
	if err := validName(name); err != nil {
		return 0, vfs.FileAttr{}, err
	}
	if _, ok := parent.children[name]; ok {
		return 0, vfs.FileAttr{}, vfs.ErrExist
	}

	n := m.newNode(vfs.TypeDir, 0755)
	n.nlink = 2
	n.children = make(map[string]uint64)
	m.linkChild(parent, name, n)
	parent.nlink++
	return n.id, n.attr(), nil
}

// Remove implements vfs.FileSystem. Removing a non-empty directory fails
// with ErrNotEmpty; REMOVE and RMDIR share this path.
func (m *MemFS) Remove(_ context.Context, dir uint64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, err := m.dirNode(dir)
	if err != nil {
		return err
	}
	id, ok := parent.children[name]
	if !ok {
		return vfs.ErrNoEnt
	}

	n := m.nodes[id]
	if n.ftype == vfs.TypeDir {
		if len(n.children) > 0 {
			return vfs.ErrNotEmpty
		}
		parent.nlink--
		delete(m.nodes, id)
	} else {
		n.nlink--
		if n.nlink == 0 {
			delete(m.nodes, id)
		}
	}

	delete(parent.children, name)
	m.touchDir(parent)
	return nil
}

// Rename implements vfs.FileSystem. An existing target is replaced,
// matching RENAME's atomic-replace semantics.
func (m *MemFS) Rename(_ context.Context, fromDir uint64, fromName string, toDir uint64, toName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, err := m.dirNode(fromDir)
	if err != nil {
		return err
	}
	to, err := m.dirNode(toDir)
	if err != nil {
		return err
	}
	if err := validName(toName); err != nil {
		return err
	}

	id, ok := from.children[fromName]
	if !ok {
		return vfs.ErrNoEnt
	}

	if targetID, ok := to.children[toName]; ok && targetID != id {
		target := m.nodes[targetID]
		if target.ftype == vfs.TypeDir && len(target.children) > 0 {
			return vfs.ErrNotEmpty
		}
		delete(m.nodes, targetID)
	}

	delete(from.children, fromName)
	to.children[toName] = id
	m.touchDir(from)
	if to != from {
		m.touchDir(to)
	}
	return nil
}

// ReadDir implements vfs.FileSystem. Entries are ordered by ascending
// file ID, which makes the listing deterministic and lets startAfter
// resume from any position, including the last entry of the previous page.
func (m *MemFS) ReadDir(_ context.Context, dir uint64, startAfter uint64, maxEntries int) (vfs.ReadDirResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	parent, err := m.dirNode(dir)
	if err != nil {
		return vfs.ReadDirResult{}, err
	}

	type childEntry struct {
		id   uint64
		name string
	}
	children := make([]childEntry, 0, len(parent.children))
	for name, id := range parent.children {
		children = append(children, childEntry{id: id, name: name})
	}
	sort.Slice(children, func(i, j int) bool { return children[i].id < children[j].id })

	result := vfs.ReadDirResult{End: true}
	for _, child := range children {
		if child.id <= startAfter {
			continue
		}
		if maxEntries > 0 && len(result.Entries) >= maxEntries {
			result.End = false
			break
		}
		result.Entries = append(result.Entries, vfs.DirEntry{
			FileID: child.id,
			Name:   child.name,
			Attr:   m.nodes[child.id].attr(),
		})
	}
	return result, nil
}

// Symlink implements vfs.FileSystem.
func (m *MemFS) Symlink(_ context.Context, dir uint64, name string, target string, attr vfs.SetAttr) (uint64, vfs.FileAttr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, err := m.dirNode(dir)
	if err != nil {
		return 0, vfs.FileAttr{}, err
	}
	if err := validName(name); err != nil {
		return 0, vfs.FileAttr{}, err
	}
	if _, ok := parent.children[name]; ok {
		return 0, vfs.FileAttr{}, vfs.ErrExist
	}

	n := m.newNode(vfs.TypeLnk, 0777)
	n.target = target
	n.data = []byte(target)
	m.applyCreateAttr(n, attr)
	m.linkChild(parent, name, n)
	return n.id, n.attr(), nil
}

// Readlink implements vfs.FileSystem.
func (m *MemFS) Readlink(_ context.Context, id uint64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nodes[id]
	if !ok {
		return "", vfs.ErrNoEnt
	}
	if n.ftype != vfs.TypeLnk {
		return "", vfs.ErrInval
	}
	return n.target, nil
}

// Link implements vfs.FileSystem.
func (m *MemFS) Link(_ context.Context, id uint64, dir uint64, name string) (vfs.FileAttr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok {
		return vfs.FileAttr{}, vfs.ErrNoEnt
	}
	if n.ftype == vfs.TypeDir {
		return vfs.FileAttr{}, vfs.ErrIsDir
	}

	parent, err := m.dirNode(dir)
	if err != nil {
		return vfs.FileAttr{}, err
	}
	if err := validName(name); err != nil {
		return vfs.FileAttr{}, err
	}
	if _, ok := parent.children[name]; ok {
		return vfs.FileAttr{}, vfs.ErrExist
	}

	parent.children[name] = id
	n.nlink++
	n.ctime = nowTime()
	m.touchDir(parent)
	return n.attr(), nil
}

// Mknod implements vfs.FileSystem.
func (m *MemFS) Mknod(_ context.Context, dir uint64, name string, ftype vfs.FileType, spec vfs.SpecData, attr vfs.SetAttr) (uint64, vfs.FileAttr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ftype {
	case vfs.TypeChr, vfs.TypeBlk, vfs.TypeSock, vfs.TypeFifo:
	default:
		return 0, vfs.FileAttr{}, vfs.ErrBadType
	}

	parent, err := m.dirNode(dir)
	if err != nil {
		return 0, vfs.FileAttr{}, err
	}
	if err := validName(name); err != nil {
		return 0, vfs.FileAttr{}, err
	}
	if _, ok := parent.children[name]; ok {
		return 0, vfs.FileAttr{}, vfs.ErrExist
	}

	n := m.newNode(ftype, 0644)
	n.rdev = spec
	m.applyCreateAttr(n, attr)
	m.linkChild(parent, name, n)
	return n.id, n.attr(), nil
}

// Commit implements vfs.FileSystem. Data never leaves memory, so commit
// just reports fresh attributes.
func (m *MemFS) Commit(_ context.Context, id uint64, _ uint64, _ uint32) (vfs.FileAttr, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nodes[id]
	if !ok {
		return vfs.FileAttr{}, vfs.ErrNoEnt
	}
	return n.attr(), nil
}

// ============================================================================
// Tree-building helpers (demo server, tests)
// ============================================================================

// AddFile creates a file at a slash-separated path, creating intermediate
// directories, and returns its file ID.
func (m *MemFS) AddFile(path string, data []byte) (uint64, error) {
	dir, name, err := m.ensureParents(path)
	if err != nil {
		return 0, err
	}
	id, _, err := m.Create(context.Background(), dir, name, vfs.SetAttr{})
	if err != nil {
		return 0, err
	}
	if len(data) > 0 {
		if _, err := m.Write(context.Background(), id, 0, data); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// AddDir creates a directory at a slash-separated path, creating
// intermediate directories, and returns its file ID.
func (m *MemFS) AddDir(path string) (uint64, error) {
	dir, name, err := m.ensureParents(path)
	if err != nil {
		return 0, err
	}
	id, _, err := m.Mkdir(context.Background(), dir, name)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ensureParents walks to the parent of path, creating directories along
// the way, and returns (parentID, basename).
func (m *MemFS) ensureParents(path string) (uint64, string, error) {
	components := make([]string, 0, 8)
	for _, c := range strings.Split(path, "/") {
		if c != "" {
			components = append(components, c)
		}
	}
	if len(components) == 0 {
		return 0, "", vfs.ErrInval
	}

	ctx := context.Background()
	dir := uint64(rootID)
	for _, c := range components[:len(components)-1] {
		id, err := m.Lookup(ctx, dir, c)
		if errors.Is(err, vfs.ErrNoEnt) {
			if id, _, err = m.Mkdir(ctx, dir, c); err != nil {
				return 0, "", err
			}
		} else if err != nil {
			return 0, "", err
		}
		dir = id
	}
	return dir, components[len(components)-1], nil
}

// ============================================================================
// Internals
// ============================================================================

// validName rejects names that can never be directory entries.
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

// dirNode fetches a node and checks it is a directory.
func (m *MemFS) dirNode(id uint64) (*node, error) {
	n, ok := m.nodes[id]
	if !ok {
		return nil, vfs.ErrNoEnt
	}
	if n.ftype != vfs.TypeDir {
		return nil, vfs.ErrNotDir
	}
	return n, nil
}

// newNode allocates the next file ID and registers a fresh node.
func (m *MemFS) newNode(ftype vfs.FileType, mode uint32) *node {
	now := nowTime()
	n := &node{
		id:    m.nextID,
		ftype: ftype,
		mode:  mode,
		nlink: 1,
		atime: now,
		mtime: now,
		ctime: now,
	}
	m.nextID++
	m.nodes[n.id] = n
	return n
}

// linkChild inserts a child into a directory and bumps the directory's
// change times.
func (m *MemFS) linkChild(parent *node, name string, child *node) {
	parent.children[name] = child.id
	m.touchDir(parent)
}

// touchDir bumps a directory's mtime/ctime after a membership change.
func (m *MemFS) touchDir(dir *node) {
	now := nowTime()
	dir.mtime = now
	dir.ctime = now
}

// applyCreateAttr applies the client-supplied initial attributes.
func (m *MemFS) applyCreateAttr(n *node, attr vfs.SetAttr) {
	if attr.Mode != nil {
		n.mode = *attr.Mode
	}
	if attr.UID != nil {
		n.uid = *attr.UID
	}
	if attr.GID != nil {
		n.gid = *attr.GID
	}
	if attr.Size != nil && n.ftype == vfs.TypeReg {
		n.resize(*attr.Size)
	}
	applySetTime(&n.atime, attr.Atime)
	applySetTime(&n.mtime, attr.Mtime)
}

// resize grows or truncates a file's contents.
func (n *node) resize(size uint64) {
	switch {
	case size > uint64(len(n.data)):
		n.data = append(n.data, make([]byte, size-uint64(len(n.data)))...)
	case size < uint64(len(n.data)):
		n.data = n.data[:size]
	}
}

// attr builds the FileAttr snapshot for a node.
func (n *node) attr() vfs.FileAttr {
	size := uint64(len(n.data))
	return vfs.FileAttr{
		Type:   n.ftype,
		Mode:   n.mode,
		Nlink:  n.nlink,
		UID:    n.uid,
		GID:    n.gid,
		Size:   size,
		Used:   size,
		Rdev:   n.rdev,
		Fsid:   1,
		FileID: n.id,
		Atime:  n.atime,
		Mtime:  n.mtime,
		Ctime:  n.ctime,
	}
}

func applySetTime(dst *vfs.Time, st vfs.SetTime) {
	switch st.How {
	case vfs.SetToServerTime:
		*dst = nowTime()
	case vfs.SetToClientTime:
		*dst = st.Time
	}
}

func nowTime() vfs.Time {
	now := time.Now()
	return vfs.Time{
		Seconds:  uint32(now.Unix()),
		Nseconds: uint32(now.Nanosecond()),
	}
}
