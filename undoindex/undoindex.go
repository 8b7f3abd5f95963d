// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package undoindex provides a transactional, multi-index object
// container living inside a segment.
//
// An UndoIndex maintains one primary and any number of secondary
// ordered-unique indexes over a homogeneous value type and records, for
// every mutation performed while an undo session is open, the minimal
// information needed to roll the mutation back. Sessions nest; the
// innermost session can be undone, merged into its parent, or retained.
//
// Nodes are fixed-size records inside the segment: one 16-byte hook per
// index, the modification time, and the encoded value. All references
// between records are relative, so a reopened or remapped segment finds
// its containers intact. The container additionally keeps a process-local
// decoded view of each touched node, so that callers work with stable *V
// pointers while the segment bytes remain the authoritative state.
//
// The container is single-writer and does no internal locking.
package undoindex

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Fantom-foundation/Chainbase/backend/avltree"
	"github.com/Fantom-foundation/Chainbase/backend/hook"
	"github.com/Fantom-foundation/Chainbase/backend/multiindex"
	"github.com/Fantom-foundation/Chainbase/backend/nodealloc"
	"github.com/Fantom-foundation/Chainbase/common"
	"github.com/Fantom-foundation/Chainbase/segment"
)

// Primary-key generator parameters. Splitting the id space per database
// and per generator lets a reader tell from an id alone which database
// assigned it and whether the object is undo-tracked.
const (
	MaxDatabaseCount            = 1000
	MaxNextID                   = math.MaxInt64 / MaxDatabaseCount
	MaxCreateWithoutUndoNextID  = MaxNextID / 2
)

// erasedFlag parks a node on the removed list; it occupies the 2-bit
// balance field of the primary hook, whose tree values are -1, 0, and 1.
const erasedFlag = -2

// IndexDef configures one ordered-unique index. A nil Compare on the
// first index selects ordering by object id, the common case.
type IndexDef[V any] struct {
	Name    string
	Compare func(a, b *V) int
}

// Config describes an UndoIndex. Index 0 is the primary index.
type Config[V any] struct {
	// Name identifies the container's persisted state in the segment
	// directory.
	Name string
	// Codec translates values to and from their node image.
	Codec ValueCodec[V]
	// GetID and SetID access the value's object id field.
	GetID func(*V) int64
	SetID func(*V, int64)
	// Indexes lists the configured indexes; at least the primary.
	Indexes []IndexDef[V]
}

// index header layout, relative to the header record
const (
	hdrNumIndexes  = 0  // u32
	hdrValueSize   = 4  // u32
	hdrNodeSize    = 8  // u32
	hdrOldNodeSize = 12 // u32
	hdrNextID      = 16 // i64
	hdrCwuNextID   = 24 // i64, -1 = generator not initialized
	hdrFirstNextID = 32 // i64
	hdrRevision    = 40 // u64
	hdrMonotonic   = 48 // u64
	hdrDatabaseID  = 56 // u64
	hdrOldHead     = 64 // u64
	hdrRemovedHead = 72 // u64
	hdrNodeFree    = 80 // u64
	hdrOldFree     = 88 // u64
	hdrCreatedFree = 96 // u64
	hdrCreatedSlot = 104
	hdrIndexSlots  = 104 + avltree.SlotSize
)

// created-record layout: hook, id, live-node offset
const (
	createdRecID      = hook.Size
	createdRecCurrent = hook.Size + 8
	createdRecSize    = hook.Size + 16
)

// old-record layout: hook, saved mtime, live-node offset, saved value
const (
	oldRecMtime   = hook.Size
	oldRecCurrent = hook.Size + 8
	oldRecValue   = hook.Size + 16
)

// undoState captures the container state at the moment a session began.
type undoState struct {
	// heads of the side lists when the session began; entries in front
	// of these belong to the session. 0 marks the list end.
	oldValuesEnd     segment.Offset
	removedValuesEnd segment.Offset
	oldNextID        int64
	ctime            uint64
}

// UndoIndex is the container. Values are addressed by stable *V pointers
// handed out by its operations; all bookkeeping lives in the segment.
type UndoIndex[V any] struct {
	seg   *segment.Manager
	cfg   Config[V]
	codec ValueCodec[V]

	header      segment.Offset
	numIndexes  int
	valueSize   int64
	nodeSize    int64
	oldNodeSize int64
	primaryByID bool

	alloc        *nodealloc.Allocator
	oldAlloc     *nodealloc.Allocator
	createdAlloc *nodealloc.Allocator
	set          *multiindex.Set
	created      *avltree.Tree
	compare      []func(a, b *V) int

	undoStack []undoState

	live map[segment.Offset]*V
	refs map[*V]segment.Offset

	instanceID uint64
}

// Open attaches an UndoIndex to a segment, creating its persisted state
// on first use and validating it on reopen.
func Open[V any](seg *segment.Manager, cfg Config[V]) (*UndoIndex[V], error) {
	if cfg.Name == "" || cfg.Codec == nil || cfg.GetID == nil || cfg.SetID == nil {
		return nil, fmt.Errorf("%w: incomplete undo index configuration", common.ErrLogic)
	}
	if len(cfg.Indexes) == 0 {
		return nil, fmt.Errorf("%w: at least a primary index is required", common.ErrLogic)
	}
	names := map[string]bool{}
	for _, ix := range cfg.Indexes {
		if names[ix.Name] {
			return nil, fmt.Errorf("%w: duplicate index %q", common.ErrLogic, ix.Name)
		}
		names[ix.Name] = true
	}
	for i := 1; i < len(cfg.Indexes); i++ {
		if cfg.Indexes[i].Compare == nil {
			return nil, fmt.Errorf("%w: secondary index %q has no comparator", common.ErrLogic, cfg.Indexes[i].Name)
		}
	}

	u := &UndoIndex[V]{
		seg:         seg,
		cfg:         cfg,
		codec:       cfg.Codec,
		numIndexes:  len(cfg.Indexes),
		valueSize:   int64(cfg.Codec.EncodedSize()),
		primaryByID: cfg.Indexes[0].Compare == nil,
		live:        map[segment.Offset]*V{},
		refs:        map[*V]segment.Offset{},
	}
	u.nodeSize = align8(int64(u.numIndexes)*hook.Size + 8 + u.valueSize)
	u.oldNodeSize = align8(oldRecValue + u.valueSize)

	headerSize := int64(hdrIndexSlots + u.numIndexes*avltree.SlotSize)
	if off, ok := seg.Lookup(cfg.Name); ok {
		u.header = off
		hdr := seg.Bytes(off, headerSize)
		if got, want := binary.LittleEndian.Uint32(hdr[hdrNumIndexes:]), uint32(u.numIndexes); got != want {
			return nil, fmt.Errorf("%w: content of memory does not match data expected by executable: %d indexes persisted, %d configured", common.ErrCorrupted, got, want)
		}
		if got, want := binary.LittleEndian.Uint32(hdr[hdrValueSize:]), uint32(u.valueSize); got != want {
			return nil, fmt.Errorf("%w: content of memory does not match data expected by executable: value size %d persisted, %d configured", common.ErrCorrupted, got, want)
		}
		if got, want := binary.LittleEndian.Uint32(hdr[hdrNodeSize:]), uint32(u.nodeSize); got != want {
			return nil, fmt.Errorf("%w: content of memory does not match data expected by executable: node size %d persisted, %d configured", common.ErrCorrupted, got, want)
		}
	} else {
		off, err := seg.Allocate(headerSize)
		if err != nil {
			return nil, err
		}
		hdr := seg.Bytes(off, headerSize)
		binary.LittleEndian.PutUint32(hdr[hdrNumIndexes:], uint32(u.numIndexes))
		binary.LittleEndian.PutUint32(hdr[hdrValueSize:], uint32(u.valueSize))
		binary.LittleEndian.PutUint32(hdr[hdrNodeSize:], uint32(u.nodeSize))
		binary.LittleEndian.PutUint32(hdr[hdrOldNodeSize:], uint32(u.oldNodeSize))
		var negOne int64 = -1
		binary.LittleEndian.PutUint64(hdr[hdrCwuNextID:], uint64(negOne))
		if err := seg.Publish(cfg.Name, off); err != nil {
			return nil, err
		}
		u.header = off
	}

	var err error
	if u.alloc, err = nodealloc.New(seg, u.nodeSize, u.header+hdrNodeFree); err != nil {
		return nil, err
	}
	if u.oldAlloc, err = nodealloc.New(seg, u.oldNodeSize, u.header+hdrOldFree); err != nil {
		return nil, err
	}
	if u.createdAlloc, err = nodealloc.New(seg, createdRecSize, u.header+hdrCreatedFree); err != nil {
		return nil, err
	}

	u.compare = make([]func(a, b *V) int, u.numIndexes)
	trees := make([]*avltree.Tree, u.numIndexes)
	for i := 0; i < u.numIndexes; i++ {
		cmp := cfg.Indexes[i].Compare
		if cmp == nil {
			getID := cfg.GetID
			cmp = func(a, b *V) int {
				return compareInt64(getID(a), getID(b))
			}
		}
		u.compare[i] = cmp
		pos := i
		trees[i] = avltree.New(seg, u.header+segment.Offset(hdrIndexSlots+i*avltree.SlotSize), int64(i)*hook.Size,
			func(a, b segment.Offset) int {
				return u.compare[pos](u.value(a), u.value(b))
			})
	}
	u.set = multiindex.New(trees)
	u.created = avltree.New(seg, u.header+hdrCreatedSlot, 0, func(a, b segment.Offset) int {
		return compareInt64(u.createdID(a), u.createdID(b))
	})
	return u, nil
}

// Validate checks that the persisted image matches the sizes this build
// expects. A mismatch means the segment was written by an incompatible
// executable.
func (u *UndoIndex[V]) Validate() error {
	hdr := u.seg.Bytes(u.header, hdrIndexSlots)
	if binary.LittleEndian.Uint32(hdr[hdrNumIndexes:]) != uint32(u.numIndexes) ||
		binary.LittleEndian.Uint32(hdr[hdrValueSize:]) != uint32(u.valueSize) ||
		binary.LittleEndian.Uint32(hdr[hdrNodeSize:]) != uint32(u.nodeSize) ||
		binary.LittleEndian.Uint32(hdr[hdrOldNodeSize:]) != uint32(u.oldNodeSize) {
		return fmt.Errorf("%w: content of memory does not match data expected by executable", common.ErrCorrupted)
	}
	return nil
}

// --- persisted header accessors ---

func (u *UndoIndex[V]) hdrInt64(off int) int64 {
	return int64(binary.LittleEndian.Uint64(u.seg.Bytes(u.header+segment.Offset(off), 8)))
}

func (u *UndoIndex[V]) setHdrInt64(off int, v int64) {
	binary.LittleEndian.PutUint64(u.seg.Bytes(u.header+segment.Offset(off), 8), uint64(v))
}

// NextID returns the value the regular id generator will assign next.
func (u *UndoIndex[V]) NextID() int64 { return u.hdrInt64(hdrNextID) }

// CreateWithoutUndoNextID returns the next id of the without-undo
// generator, or -1 while that generator is not initialized.
func (u *UndoIndex[V]) CreateWithoutUndoNextID() int64 { return u.hdrInt64(hdrCwuNextID) }

// FirstNextID returns the base the generators were initialized from.
func (u *UndoIndex[V]) FirstNextID() int64 { return u.hdrInt64(hdrFirstNextID) }

// Revision returns the session revision of the container.
func (u *UndoIndex[V]) Revision() uint64 { return uint64(u.hdrInt64(hdrRevision)) }

// DatabaseID returns the logical database this container belongs to.
func (u *UndoIndex[V]) DatabaseID() uint64 { return uint64(u.hdrInt64(hdrDatabaseID)) }

// SetDatabaseID records the logical database this container belongs to.
func (u *UndoIndex[V]) SetDatabaseID(id uint64) { u.setHdrInt64(hdrDatabaseID, int64(id)) }

// InstanceID returns the process instance events are reported under.
func (u *UndoIndex[V]) InstanceID() uint64 { return u.instanceID }

// SetInstanceID sets the process instance events are reported under.
func (u *UndoIndex[V]) SetInstanceID(id uint64) { u.instanceID = id }

func (u *UndoIndex[V]) setNextID(v int64)      { u.setHdrInt64(hdrNextID, v) }
func (u *UndoIndex[V]) setCwuNextID(v int64)   { u.setHdrInt64(hdrCwuNextID, v) }
func (u *UndoIndex[V]) setRevision(v uint64)   { u.setHdrInt64(hdrRevision, int64(v)) }
func (u *UndoIndex[V]) monotonic() uint64      { return uint64(u.hdrInt64(hdrMonotonic)) }
func (u *UndoIndex[V]) setMonotonic(v uint64)  { u.setHdrInt64(hdrMonotonic, int64(v)) }
func (u *UndoIndex[V]) bumpMonotonic() uint64 {
	v := u.monotonic() + 1
	u.setMonotonic(v)
	return v
}

func (u *UndoIndex[V]) oldHead() segment.Offset     { return segment.Offset(u.hdrInt64(hdrOldHead)) }
func (u *UndoIndex[V]) setOldHead(o segment.Offset) { u.setHdrInt64(hdrOldHead, int64(o)) }
func (u *UndoIndex[V]) removedHead() segment.Offset {
	return segment.Offset(u.hdrInt64(hdrRemovedHead))
}
func (u *UndoIndex[V]) setRemovedHead(o segment.Offset) { u.setHdrInt64(hdrRemovedHead, int64(o)) }

// InitNextID initializes both id generators from the given base. It may
// be called only once per container lifetime.
func (u *UndoIndex[V]) InitNextID(base int64) error {
	if u.NextID() != 0 {
		return fmt.Errorf("%w: next_id already initialized", common.ErrLogic)
	}
	u.setCwuNextID(base)
	u.setNextID(base + MaxCreateWithoutUndoNextID)
	u.setHdrInt64(hdrFirstNextID, base)
	return nil
}

// --- node image accessors ---

func (u *UndoIndex[V]) mtimeOff(n segment.Offset) segment.Offset {
	return n + segment.Offset(u.numIndexes*hook.Size)
}

func (u *UndoIndex[V]) valueOff(n segment.Offset) segment.Offset {
	return u.mtimeOff(n) + 8
}

func (u *UndoIndex[V]) nodeMtime(n segment.Offset) uint64 {
	return binary.LittleEndian.Uint64(u.seg.Bytes(u.mtimeOff(n), 8))
}

func (u *UndoIndex[V]) setNodeMtime(n segment.Offset, m uint64) {
	binary.LittleEndian.PutUint64(u.seg.Bytes(u.mtimeOff(n), 8), m)
}

func (u *UndoIndex[V]) valueBytes(n segment.Offset) []byte {
	return u.seg.Bytes(u.valueOff(n), u.valueSize)
}

// removed flag: the balance field of the primary hook
func (u *UndoIndex[V]) isRemoved(n segment.Offset) bool {
	return hook.Balance(u.seg.Data(), int64(n)) == erasedFlag
}

func (u *UndoIndex[V]) setRemovedFlag(n segment.Offset) {
	hook.SetBalance(u.seg.Data(), int64(n), erasedFlag)
}

func (u *UndoIndex[V]) clearRemovedFlag(n segment.Offset) {
	hook.SetBalance(u.seg.Data(), int64(n), 0)
}

// value returns the stable decoded view of the node at n.
func (u *UndoIndex[V]) value(n segment.Offset) *V {
	if v, ok := u.live[n]; ok {
		return v
	}
	v := new(V)
	if err := u.codec.Load(u.valueBytes(n), v); err != nil {
		panic(fmt.Sprintf("undoindex: %v: %v", common.ErrCorrupted, err))
	}
	u.live[n] = v
	u.refs[v] = n
	return v
}

// writeValue encodes the decoded view back into the node image.
func (u *UndoIndex[V]) writeValue(n segment.Offset, v *V) error {
	if err := u.codec.Store(u.valueBytes(n), v); err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	return nil
}

// reloadValue re-decodes the node image into the existing view, keeping
// the *V identity of the value.
func (u *UndoIndex[V]) reloadValue(n segment.Offset) *V {
	v := u.value(n)
	if err := u.codec.Load(u.valueBytes(n), v); err != nil {
		panic(fmt.Sprintf("undoindex: %v: %v", common.ErrCorrupted, err))
	}
	return v
}

func (u *UndoIndex[V]) node(v *V) (segment.Offset, error) {
	n, ok := u.refs[v]
	if !ok {
		return 0, fmt.Errorf("%w: value is not managed by this container", common.ErrLogic)
	}
	return n, nil
}

func (u *UndoIndex[V]) dropView(n segment.Offset) {
	if v, ok := u.live[n]; ok {
		delete(u.refs, v)
		delete(u.live, n)
	}
}

// --- old-record accessors ---

func (u *UndoIndex[V]) oldNext(o segment.Offset) segment.Offset {
	if h, ok := hook.GetNext(u.seg.Data(), int64(o)); ok {
		return segment.Offset(h)
	}
	return 0
}

func (u *UndoIndex[V]) setOldNext(o, next segment.Offset) {
	if next == 0 {
		hook.SetNextNull(u.seg.Data(), int64(o))
		return
	}
	if err := hook.SetNext(u.seg.Data(), int64(o), int64(next)); err != nil {
		panic(fmt.Sprintf("undoindex: %v", err))
	}
}

func (u *UndoIndex[V]) oldMtime(o segment.Offset) uint64 {
	return binary.LittleEndian.Uint64(u.seg.Bytes(o+oldRecMtime, 8))
}

func (u *UndoIndex[V]) oldCurrent(o segment.Offset) segment.Offset {
	return segment.Offset(binary.LittleEndian.Uint64(u.seg.Bytes(o+oldRecCurrent, 8)))
}

func (u *UndoIndex[V]) oldValueBytes(o segment.Offset) []byte {
	return u.seg.Bytes(o+oldRecValue, u.valueSize)
}

// --- removed-list threading through the primary hook ---

func (u *UndoIndex[V]) removedNext(n segment.Offset) segment.Offset {
	if h, ok := hook.GetNext(u.seg.Data(), int64(n)); ok {
		return segment.Offset(h)
	}
	return 0
}

func (u *UndoIndex[V]) setRemovedNext(n, next segment.Offset) {
	if next == 0 {
		hook.SetNextNull(u.seg.Data(), int64(n))
		return
	}
	if err := hook.SetNext(u.seg.Data(), int64(n), int64(next)); err != nil {
		panic(fmt.Sprintf("undoindex: %v", err))
	}
}

// --- created-record accessors ---

func (u *UndoIndex[V]) createdID(c segment.Offset) int64 {
	return int64(binary.LittleEndian.Uint64(u.seg.Bytes(c+createdRecID, 8)))
}

func (u *UndoIndex[V]) createdCurrent(c segment.Offset) segment.Offset {
	return segment.Offset(binary.LittleEndian.Uint64(u.seg.Bytes(c+createdRecCurrent, 8)))
}

// --- generic helpers ---

func putInt64(b []byte, v int64) {
	binary.LittleEndian.PutUint64(b, uint64(v))
}

func putUint64(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b, v)
}

func compareInt64(a, b int64) int {
	return common.Compare(a, b)
}

func align8(v int64) int64 {
	return (v + 7) &^ 7
}

// Size returns the number of values in the main index.
func (u *UndoIndex[V]) Size() int64 {
	return u.set.Index(0).Size()
}

// Empty reports whether the container holds no values.
func (u *UndoIndex[V]) Empty() bool {
	return u.set.Index(0).Empty()
}

// IndexCount returns the number of configured indexes.
func (u *UndoIndex[V]) IndexCount() int {
	return u.numIndexes
}

// Allocator exposes the node allocator, which carries the optional second
// and third segment handles. The index itself does not read these handles
// and does not pass them to values it stores.
func (u *UndoIndex[V]) Allocator() *nodealloc.Allocator {
	return u.alloc
}

// HasUndoSession reports whether at least one session is open.
func (u *UndoIndex[V]) HasUndoSession() bool {
	return len(u.undoStack) > 0
}

// UndoStackRevisionRange returns the revisions spanned by the open
// sessions, from committed to current.
func (u *UndoIndex[V]) UndoStackRevisionRange() (first, last uint64) {
	return u.Revision() - uint64(len(u.undoStack)), u.Revision()
}

// SetRevision moves the revision of a container with no open sessions
// forward, aligning freshly created containers of one database.
func (u *UndoIndex[V]) SetRevision(revision uint64) error {
	if len(u.undoStack) != 0 {
		return fmt.Errorf("%w: cannot set revision while there is an existing undo stack", common.ErrLogic)
	}
	if revision < u.Revision() {
		return fmt.Errorf("%w: revision cannot decrease", common.ErrLogic)
	}
	u.setRevision(revision)
	return nil
}

// IsMatureObject reports whether the value predates every open session,
// making it safe to destroy without session bookkeeping.
func (u *UndoIndex[V]) IsMatureObject(v *V) bool {
	n, err := u.node(v)
	if err != nil {
		return false
	}
	if len(u.undoStack) == 0 {
		return true
	}
	oldest := &u.undoStack[0]
	if u.nodeMtime(n) >= oldest.ctime {
		return false
	}
	if u.cfg.GetID(v) >= oldest.oldNextID {
		return false
	}
	return true
}

// Exists reports whether the value is linked in any index. The primary
// index is skipped when it is keyed by id, since an id lookup cannot
// distinguish the value from its replacement.
func (u *UndoIndex[V]) Exists(v *V) bool {
	start := 0
	if u.primaryByID {
		start = 1
	}
	for i := start; i < u.numIndexes; i++ {
		pos := i
		if n, ok := u.set.Index(i).Find(func(o segment.Offset) int {
			return u.compare[pos](v, u.value(o))
		}); ok {
			if self, err := u.node(v); err == nil && n == self {
				return true
			}
		}
	}
	return false
}

// WalkIndexes visits every value through every index in order.
func (u *UndoIndex[V]) WalkIndexes(f func(index int, position int, v *V)) {
	for i := 0; i < u.numIndexes; i++ {
		pos := 0
		u.set.Index(i).ForEach(func(n segment.Offset) {
			f(i, pos, u.value(n))
			pos++
		})
	}
}
