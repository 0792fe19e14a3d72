// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package hpack implements the HPACK (RFC 7541) dynamic header table: a
// bounded, circular-buffer-backed indexed header-field cache owned by one
// HTTP/2 flow.
package hpack

// ArrayCapacity bounds the circular buffer independently of the RFC size
// limit: a hard slot count the table never exceeds regardless of
// max_size.
const ArrayCapacity = 512

// RFCEntryOverhead is the RFC 7541 §4.1 fixed per-entry accounting
// overhead added to name.len + value.len when computing an entry's
// contribution to rfc_table_size.
const RFCEntryOverhead = 32

// StaticMaxIndex is the size of the HPACK static table (RFC 7541 §2.3.1,
// appendix A: 61 predefined entries); dynamic indices are numbered after it.
const StaticMaxIndex = 61

// TableMemoryTrackingIncrement is the chunk size the allocation tracker
// is notified in, rather than on every single byte of growth or shrink.
const TableMemoryTrackingIncrement = 4096

// AllocationTracker is the per-flow collaborator notified of the dynamic
// table's backing-memory footprint in TableMemoryTrackingIncrement
// chunks. It is borrowed from the owning flow and need not be
// thread-safe: mutated only by the flow's own processing thread.
type AllocationTracker interface {
	Grow(chunks int)
	Shrink(chunks int)
}

// Field is a byte slice with an explicit length, matching HPACK's
// {name, value} Field pair. Entries copy their Field contents on
// construction so a pruned source entry can't corrupt a live one.
type Field []byte

// Entry is one live {name, value} pair in the dynamic table.
type Entry struct {
	Name  Field
	Value Field
}

func (e Entry) size() int {
	return len(e.Name) + len(e.Value) + RFCEntryOverhead
}

// DynamicTable is the HPACK dynamic header table: a
// fixed-capacity circular buffer of owning entries. Index 1 is always the
// newest entry; eviction is strictly oldest-first.
type DynamicTable struct {
	buf   [ArrayCapacity]Entry
	valid [ArrayCapacity]bool

	start      int
	numEntries int

	rfcTableSize int
	maxSize      int

	tableMemoryAllocated int

	tracker AllocationTracker
}

// NewDynamicTable creates an empty table bound to tracker (may be nil in
// tests that don't care about allocation notifications) with the given
// initial max_size.
func NewDynamicTable(maxSize int, tracker AllocationTracker) *DynamicTable {
	return &DynamicTable{maxSize: maxSize, tracker: tracker}
}

// NumEntries reports how many live entries the table currently holds.
func (t *DynamicTable) NumEntries() int { return t.numEntries }

// RFCTableSize reports the RFC 7541 §4.1 accounted size of all live
// entries.
func (t *DynamicTable) RFCTableSize() int { return t.rfcTableSize }

// MaxSize reports the table's current size limit.
func (t *DynamicTable) MaxSize() int { return t.maxSize }

func (t *DynamicTable) slot(i int) int { return i % ArrayCapacity }

// AddEntry adds one entry to the table. It returns false only when the
// backing circular array is already at ArrayCapacity (a hard limit
// independent of the RFC size accounting). An entry whose own size
// exceeds max_size clears the table and returns true (RFC 7541 §4.4):
// a per-entry size cap is not itself an error condition.
func (t *DynamicTable) AddEntry(name, value []byte) bool {
	if t.numEntries >= ArrayCapacity {
		return false
	}

	newSize := len(name) + len(value) + RFCEntryOverhead

	if newSize > t.maxSize {
		t.clear()
		return true
	}

	// Copy name/value before evicting: the source material may alias an
	// entry about to be pruned by the loop below.
	entry := Entry{Name: append(Field(nil), name...), Value: append(Field(nil), value...)}

	for t.rfcTableSize+newSize > t.maxSize && t.numEntries > 0 {
		t.evictOldest()
	}

	t.start = (t.start - 1 + ArrayCapacity) % ArrayCapacity
	t.buf[t.start] = entry
	t.valid[t.start] = true
	t.numEntries++
	t.rfcTableSize += newSize

	t.growMemory()
	return true
}

// GetEntry looks up an entry by its virtual index, 1-based over the
// combined static+dynamic namespace.
func (t *DynamicTable) GetEntry(virtualIndex int) (Entry, bool) {
	dynIndex := virtualIndex - StaticMaxIndex - 1
	if dynIndex < 0 || dynIndex >= t.numEntries {
		return Entry{}, false
	}
	slot := t.slot(t.start + dynIndex)
	return t.buf[slot], true
}

// UpdateSize changes the table's size limit: pruning to the new limit
// first (if it shrinks the table), then adopting it.
func (t *DynamicTable) UpdateSize(newSize int) {
	if newSize < t.rfcTableSize {
		t.PruneToSize(newSize)
	}
	t.maxSize = newSize
}

// PruneToSize evicts from the tail until rfc_table_size <= n.
func (t *DynamicTable) PruneToSize(n int) {
	for t.rfcTableSize > n && t.numEntries > 0 {
		t.evictTail()
	}
}

// evictOldest evicts the single oldest (highest virtual index) live
// entry — used by AddEntry, which evicts exactly one candidate entry at a
// time until there's room.
func (t *DynamicTable) evictOldest() {
	t.evictTail()
}

// evictTail removes the entry at the highest virtual index (the table's
// logical tail, i.e. oldest entry), freeing its bytes and shrinking the
// memory tracker in step.
func (t *DynamicTable) evictTail() {
	if t.numEntries == 0 {
		return
	}
	last := t.slot(t.start + t.numEntries - 1)
	evicted := t.buf[last]
	t.valid[last] = false
	t.buf[last] = Entry{}
	t.numEntries--
	t.rfcTableSize -= evicted.size()

	t.shrinkMemory()
}

// clear evicts every live entry (the RFC 7541 §4.4 oversize path).
func (t *DynamicTable) clear() {
	for t.numEntries > 0 {
		t.evictTail()
	}
}

// growMemory advances table_memory_allocated in
// TableMemoryTrackingIncrement chunks until it covers rfc_table_size,
// notifying the tracker once per chunk crossed.
func (t *DynamicTable) growMemory() {
	chunks := 0
	for t.tableMemoryAllocated < t.rfcTableSize {
		t.tableMemoryAllocated += TableMemoryTrackingIncrement
		chunks++
	}
	if chunks > 0 && t.tracker != nil {
		t.tracker.Grow(chunks)
	}
}

// shrinkMemory retreats table_memory_allocated in
// TableMemoryTrackingIncrement chunks while it remains at least a full
// chunk above rfc_table_size, notifying the tracker of the chunks released.
func (t *DynamicTable) shrinkMemory() {
	chunks := 0
	for t.tableMemoryAllocated-TableMemoryTrackingIncrement >= t.rfcTableSize {
		t.tableMemoryAllocated -= TableMemoryTrackingIncrement
		chunks++
	}
	if chunks > 0 && t.tracker != nil {
		t.tracker.Shrink(chunks)
	}
}

// Close frees every live entry and notifies the tracker of the deallocation
// in TableMemoryTrackingIncrement steps. No separate baseline amount is
// reported, on Close or at construction.
func (t *DynamicTable) Close() {
	t.clear()
	if t.tableMemoryAllocated > 0 && t.tracker != nil {
		chunks := t.tableMemoryAllocated / TableMemoryTrackingIncrement
		t.tableMemoryAllocated = 0
		if chunks > 0 {
			t.tracker.Shrink(chunks)
		}
	}
}
