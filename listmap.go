// Package listmap provides a generic hash map that threads every entry
// onto a single doubly-linked list, with the entries of each bucket
// occupying one contiguous run of that list.
//
// The layout gives the map two properties regular open-addressed or
// per-bucket-chained maps lack:
//
//   - Iteration touches only live entries, in list order, regardless of
//     how sparse the bucket directory is.
//   - Entries never move once inserted. Growth and rehashing relink
//     list pointers and rebuild the directory but leave entry storage in
//     place, so value pointers and positions stay valid until the entry
//     is deleted.
//
// MapOf is not safe for concurrent use. Callers that share a map across
// goroutines must provide their own synchronization.
package listmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"math"
	"math/bits"
	"math/rand/v2"
	"strings"
	"unsafe"
)

const (
	// mapLoadFactor is the entries-per-bucket threshold: an insert that
	// pushes the count above bucketCount*mapLoadFactor triggers a growth
	// rehash, and a delete that drops it below bucketCount/mapLoadFactor
	// triggers a shrink. The gap between the two keeps alternating
	// inserts and deletes at a boundary from rehashing on every call.
	mapLoadFactor = 2

	// mapGrowthRatio is the factor applied to the bucket count on
	// growth and the divisor applied on shrink. Non-integer, so repeated
	// growth leaves the power-of-two lattice quickly, which spreads
	// clustered hashes under modulo indexing.
	mapGrowthRatio = 2.23

	// defaultMinBucketCount is the directory size of a map built
	// without WithPresize.
	defaultMinBucketCount = 1
)

const (
	// arenaBlockBytes is the target footprint of one entry arena block,
	// a whole number of cache lines. Blocks are allocated once and never
	// move or shrink while entries live in them.
	arenaBlockBytes = 64 * CacheLineSize

	// minNodesPerBlock floors the block size for very large entry types.
	minNodesPerBlock = 8
)

// Pos is a stable handle to one entry. It stays valid from the entry's
// insertion until its deletion: unrelated inserts, deletes, growth and
// rehashing do not invalidate it. Once the entry is deleted the handle
// is retired; dereferencing a retired handle panics until the underlying
// slot is reused, after which it silently refers to the new entry.
type Pos int32

// NoPos is the sentinel position: Find returns it on a miss, First on an
// empty map, and Next at the end of the entry list.
const NoPos Pos = -1

// freedPos marks the prev link of recycled arena slots so that retired
// handles can be detected until the slot is reused.
const freedPos Pos = -2

// ErrKeyNotFound is returned by At for keys the map does not hold.
var ErrKeyNotFound = errors.New("listmap: key not found")

// EntryOf is an immutable map entry. The Key of a stored entry must not
// be modified; the Value may be updated in place.
type EntryOf[K comparable, V any] struct {
	Key   K
	Value V
}

// nodeOf is one slot of the entry arena. hash caches the full key hash
// so lookups can reject mismatches without comparing keys and rehashing
// never recomputes it. prev is freedPos while the slot sits on the free
// chain; next doubles as the free chain link.
type nodeOf[K comparable, V any] struct {
	entry EntryOf[K, V]
	hash  uintptr
	prev  Pos
	next  Pos
}

// MapOf is a hash map whose entries all live on one doubly-linked entry
// list. The entries of each bucket form a contiguous run of that list,
// and the bucket directory stores only the position where each run
// starts. Inserting into an occupied bucket prepends at its run head;
// inserting into an empty bucket starts a new run at the list tail. Both
// keep runs contiguous without scanning.
//
// Entry storage is a chunked arena: fixed-size blocks that never move.
// Value pointers returned by Ref and EntryAt, and positions returned by
// Find and First, therefore survive any amount of growth and rehashing
// and die only with their entry.
//
// The zero value is an empty, ready-to-use map with the built-in hasher
// and default sizing. MapOf is not safe for concurrent use.
type MapOf[K comparable, V any] struct {
	blocks   [][]nodeOf[K, V] // entry arena; blocks never move once allocated
	buckets  []Pos            // run head per bucket, NoPos when unoccupied
	head     Pos              // first entry of the list
	tail     Pos              // last entry of the list
	freeHead Pos              // chain of recycled arena slots

	count     int
	allocated int32 // arena slots handed out so far, recycled ones included

	keyHash hashFunc
	seed    uintptr

	blockShift uint32 // log2 of nodes per arena block
	blockMask  int32

	minBuckets     int // shrink floor, set from WithPresize
	shrinkDisabled bool
	rangeDepth     int32 // nesting depth of live range walks
	shrinkPending  bool  // a delete crossed the threshold mid-walk

	totalGrowths uint32
	totalShrinks uint32
}

// MapConfig defines configurable MapOf options.
type MapConfig struct {
	sizeHint       int
	shrinkDisabled bool
}

// WithPresize configures a MapOf for sizeHint entries: the initial
// directory is large enough to hold them without growing, and automatic
// shrinking never takes the directory below that size. Hints of
// mapLoadFactor entries or fewer leave the default directory.
func WithPresize(sizeHint int) func(*MapConfig) {
	return func(c *MapConfig) {
		c.sizeHint = sizeHint
	}
}

// WithShrinkDisabled makes the map grow-only: deletes never rehash the
// directory downward. Explicit Shrink calls still work.
func WithShrinkDisabled() func(*MapConfig) {
	return func(c *MapConfig) {
		c.shrinkDisabled = true
	}
}

// NewMapOf creates a MapOf with the built-in hasher.
//
// Options:
//   - WithPresize for initial capacity
//   - WithShrinkDisabled to keep the directory grow-only
func NewMapOf[K comparable, V any](
	options ...func(*MapConfig),
) *MapOf[K, V] {
	return NewMapOfWithHasher[K, V](nil, options...)
}

// NewMapOfWithHasher creates a MapOf with a custom key hasher. A nil
// keyHash selects the built-in hasher. The seed argument passed to
// keyHash is fixed at construction; callers that need reproducible
// layouts across processes can ignore it and close over a constant:
//
//	m := NewMapOfWithHasher[string, int](
//		func(key string, _ uintptr) uintptr {
//			return XXHashString(key, 42)
//		},
//	)
func NewMapOfWithHasher[K comparable, V any](
	keyHash func(key K, seed uintptr) uintptr,
	options ...func(*MapConfig),
) *MapOf[K, V] {
	m := &MapOf[K, V]{}
	m.Init(keyHash, options...)
	return m
}

// NewMapOfFromEntries creates a MapOf holding the given entries, the
// closest Go rendering of list construction. Duplicate keys keep the
// first value, matching LoadOrStore.
func NewMapOfFromEntries[K comparable, V any](
	entries []EntryOf[K, V],
	options ...func(*MapConfig),
) *MapOf[K, V] {
	m := NewMapOf[K, V](append(
		[]func(*MapConfig){WithPresize(len(entries))},
		options...,
	)...)
	for i := range entries {
		m.LoadOrStore(entries[i].Key, entries[i].Value)
	}
	return m
}

// NewMapOfFromSeq creates a MapOf from an iterator sequence, the range
// construction form. Duplicate keys keep the first value.
func NewMapOfFromSeq[K comparable, V any](
	seq iter.Seq2[K, V],
	options ...func(*MapConfig),
) *MapOf[K, V] {
	m := NewMapOf[K, V](options...)
	for k, v := range seq {
		m.LoadOrStore(k, v)
	}
	return m
}

// Init configures a zero MapOf in place: hasher, presize and shrink
// policy, exactly like NewMapOfWithHasher. It must be called before the
// map is used; reinitializing a populated map discards its entries.
// Calling it is optional, a zero MapOf initializes itself with defaults
// on first use.
func (m *MapOf[K, V]) Init(
	keyHash func(key K, seed uintptr) uintptr,
	options ...func(*MapConfig),
) {
	var hs hashFunc
	if keyHash != nil {
		hs = func(ptr unsafe.Pointer, seed uintptr) uintptr {
			return keyHash(*(*K)(ptr), seed)
		}
	}
	m.init(hs, options...)
}

func (m *MapOf[K, V]) init(hs hashFunc, options ...func(*MapConfig)) {
	var c MapConfig
	for _, o := range options {
		o(&c)
	}
	m.keyHash = hs
	if m.keyHash == nil {
		m.keyHash = defaultKeyHasher[K]()
	}
	m.seed = uintptr(rand.Uint64())
	m.minBuckets = bucketsForSize(c.sizeHint)
	m.shrinkDisabled = c.shrinkDisabled
	m.blockShift = calcBlockShift(unsafe.Sizeof(nodeOf[K, V]{}))
	m.blockMask = int32(1)<<m.blockShift - 1
	m.blocks = nil
	m.allocated = 0
	m.count = 0
	m.head, m.tail, m.freeHead = NoPos, NoPos, NoPos
	m.rangeDepth, m.shrinkPending = 0, false
	m.buckets = newDirectory(m.minBuckets)
}

func (m *MapOf[K, V]) ensureInit() {
	if m.buckets == nil {
		m.init(nil)
	}
}

// bucketsForSize returns the smallest directory that holds sizeHint
// entries without crossing the growth threshold.
func bucketsForSize(sizeHint int) int {
	if sizeHint <= mapLoadFactor*defaultMinBucketCount {
		return defaultMinBucketCount
	}
	return (sizeHint + mapLoadFactor - 1) / mapLoadFactor
}

// calcBlockShift sizes arena blocks for one node type: the largest
// power-of-two node count that fits arenaBlockBytes, floored at
// minNodesPerBlock.
func calcBlockShift(nodeSize uintptr) uint32 {
	shift := uint32(3) // minNodesPerBlock
	for (uintptr(1)<<(shift+1))*nodeSize <= arenaBlockBytes {
		shift++
	}
	return shift
}

// newDirectory allocates a directory of n unoccupied buckets.
func newDirectory(n int) []Pos {
	d := make([]Pos, n)
	for b := range d {
		d[b] = NoPos
	}
	return d
}

func (m *MapOf[K, V]) nodeAt(p Pos) *nodeOf[K, V] {
	return &m.blocks[uint32(p)>>m.blockShift][int32(p)&m.blockMask]
}

func (m *MapOf[K, V]) hashOf(key *K) uintptr {
	return m.keyHash(noescape(unsafe.Pointer(key)), m.seed)
}

// bucketIndex maps a cached hash to a bucket of the current directory.
// The directory is not power-of-two sized, so this is a modulo rather
// than a mask.
func (m *MapOf[K, V]) bucketIndex(hash uintptr) int {
	return int(hash % uintptr(len(m.buckets)))
}

// alloc takes a slot off the free chain, or carves a fresh one,
// appending a new block when the arena is full. Existing blocks are
// never touched.
func (m *MapOf[K, V]) alloc(key K, value V, hash uintptr) Pos {
	p := m.freeHead
	if p != NoPos {
		n := m.nodeAt(p)
		m.freeHead = n.next
		n.entry.Key, n.entry.Value, n.hash = key, value, hash
		return p
	}
	blockLen := int(m.blockMask) + 1
	if int(m.allocated) == len(m.blocks)*blockLen {
		m.blocks = append(m.blocks, make([]nodeOf[K, V], blockLen))
	}
	p = Pos(m.allocated)
	m.allocated++
	n := m.nodeAt(p)
	n.entry.Key, n.entry.Value, n.hash = key, value, hash
	return p
}

// release returns p's slot to the free chain. The entry is zeroed so the
// arena does not pin caller memory.
func (m *MapOf[K, V]) release(p Pos) {
	n := m.nodeAt(p)
	n.entry = EntryOf[K, V]{}
	n.hash = 0
	n.prev = freedPos
	n.next = m.freeHead
	m.freeHead = p
}

// pushBack appends p to the entry list.
func (m *MapOf[K, V]) pushBack(p Pos) {
	n := m.nodeAt(p)
	n.prev, n.next = m.tail, NoPos
	if m.tail != NoPos {
		m.nodeAt(m.tail).next = p
	} else {
		m.head = p
	}
	m.tail = p
}

// insertBefore links p into the entry list immediately before at.
func (m *MapOf[K, V]) insertBefore(p, at Pos) {
	n, a := m.nodeAt(p), m.nodeAt(at)
	n.prev, n.next = a.prev, at
	if a.prev != NoPos {
		m.nodeAt(a.prev).next = p
	} else {
		m.head = p
	}
	a.prev = p
}

// unlink removes p from the entry list without touching its arena slot.
func (m *MapOf[K, V]) unlink(p Pos) {
	n := m.nodeAt(p)
	if n.prev != NoPos {
		m.nodeAt(n.prev).next = n.next
	} else {
		m.head = n.next
	}
	if n.next != NoPos {
		m.nodeAt(n.next).prev = n.prev
	} else {
		m.tail = n.prev
	}
}

// placeNode links p into the entry list and directory so that bucket b's
// run stays contiguous: an occupied bucket grows at its run head, an
// empty bucket starts its run at the list tail. Neither needs a scan.
func (m *MapOf[K, V]) placeNode(p Pos, b int) {
	if run := m.buckets[b]; run != NoPos {
		m.insertBefore(p, run)
	} else {
		m.pushBack(p)
	}
	m.buckets[b] = p
	m.count++
}

// add inserts a key known to be absent and grows the directory when the
// insert crosses the load threshold.
func (m *MapOf[K, V]) add(key K, value V, hash uintptr) Pos {
	p := m.alloc(key, value, hash)
	m.placeNode(p, m.bucketIndex(hash))
	if m.count > len(m.buckets)*mapLoadFactor {
		m.rehash(int(float64(len(m.buckets)) * mapGrowthRatio))
		m.totalGrowths++
	}
	return p
}

// locate finds key's entry within its bucket run. The cached hash
// screens candidates before the key comparison, and the scan ends where
// the run does: at the first entry whose hash lands in another bucket,
// or at the end of the list.
func (m *MapOf[K, V]) locate(key K, hash uintptr) Pos {
	b := m.bucketIndex(hash)
	for p := m.buckets[b]; p != NoPos; {
		n := m.nodeAt(p)
		if m.bucketIndex(n.hash) != b {
			break
		}
		if n.hash == hash && n.entry.Key == key {
			return p
		}
		p = n.next
	}
	return NoPos
}

// removeAt erases the entry at p. When p heads its bucket run, the run
// head moves to the following entry unless the run ends there, in which
// case the bucket becomes unoccupied. Shrinks the directory when the
// delete crosses the load threshold; while a range walk is in flight the
// shrink waits for it to finish, since a rehash would relink entries
// behind the walk's cursor.
func (m *MapOf[K, V]) removeAt(p Pos) {
	n := m.nodeAt(p)
	b := m.bucketIndex(n.hash)
	if m.buckets[b] == p {
		next := n.next
		if next != NoPos && m.bucketIndex(m.nodeAt(next).hash) == b {
			m.buckets[b] = next
		} else {
			m.buckets[b] = NoPos
		}
	}
	m.unlink(p)
	m.release(p)
	m.count--
	if !m.shrinkDisabled && m.count < len(m.buckets)/mapLoadFactor {
		if m.rangeDepth > 0 {
			m.shrinkPending = true
		} else {
			m.shrinkTo(int(float64(len(m.buckets)) / mapGrowthRatio))
		}
	}
}

func (m *MapOf[K, V]) shrinkTo(target int) {
	if target < m.minBuckets {
		target = m.minBuckets
	}
	if target >= len(m.buckets) {
		return
	}
	m.rehash(target)
	m.totalShrinks++
}

// rehash rebuilds the directory at newBucketCount buckets and relinks
// every entry through the normal placement path, reusing cached hashes.
// Entries never move in the arena, so positions and value pointers
// survive. Load triggers cannot fire mid-rebuild: placement bypasses add
// and removeAt entirely.
func (m *MapOf[K, V]) rehash(newBucketCount int) {
	if newBucketCount < 1 {
		newBucketCount = 1
	}
	order := make([]Pos, 0, m.count)
	for p := m.head; p != NoPos; p = m.nodeAt(p).next {
		order = append(order, p)
	}
	m.buckets = newDirectory(newBucketCount)
	m.head, m.tail = NoPos, NoPos
	m.count = 0
	for _, p := range order {
		m.placeNode(p, m.bucketIndex(m.nodeAt(p).hash))
	}
}

// checkPos validates a handle before it is dereferenced: positions that
// were never issued and retired positions panic. A position whose slot
// has been reused by a later insert is indistinguishable from a live one
// and stays the caller's contract.
func (m *MapOf[K, V]) checkPos(p Pos) Pos {
	if p < 0 || int32(p) >= m.allocated {
		panic("listmap: position out of range")
	}
	if m.nodeAt(p).prev == freedPos {
		panic("listmap: position refers to a deleted entry")
	}
	return p
}

// Load returns the value stored for key.
func (m *MapOf[K, V]) Load(key K) (value V, ok bool) {
	if m.count == 0 {
		return
	}
	p := m.locate(key, m.hashOf(&key))
	if p == NoPos {
		return
	}
	return m.nodeAt(p).entry.Value, true
}

// HasKey reports whether key is present.
func (m *MapOf[K, V]) HasKey(key K) bool {
	if m.count == 0 {
		return false
	}
	return m.locate(key, m.hashOf(&key)) != NoPos
}

// At returns the value stored for key and fails with ErrKeyNotFound for
// absent keys. Unlike Ref it never inserts.
func (m *MapOf[K, V]) At(key K) (V, error) {
	if value, ok := m.Load(key); ok {
		return value, nil
	}
	var zero V
	return zero, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
}

// Store sets the value for key, inserting the entry if absent.
func (m *MapOf[K, V]) Store(key K, value V) {
	m.ensureInit()
	hash := m.hashOf(&key)
	if p := m.locate(key, hash); p != NoPos {
		m.nodeAt(p).entry.Value = value
		return
	}
	m.add(key, value, hash)
}

// LoadOrStore returns the existing value for key if present. Otherwise
// it stores and returns value. Present entries are never overwritten.
func (m *MapOf[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	m.ensureInit()
	hash := m.hashOf(&key)
	if p := m.locate(key, hash); p != NoPos {
		return m.nodeAt(p).entry.Value, true
	}
	m.add(key, value, hash)
	return value, false
}

// LoadOrCompute returns the existing value for key if present. Otherwise
// it stores and returns the value produced by fn, which runs only when
// the key is absent and must not modify the map.
func (m *MapOf[K, V]) LoadOrCompute(key K, fn func() V) (actual V, loaded bool) {
	m.ensureInit()
	hash := m.hashOf(&key)
	if p := m.locate(key, hash); p != NoPos {
		return m.nodeAt(p).entry.Value, true
	}
	value := fn()
	m.add(key, value, hash)
	return value, false
}

// Swap stores value for key and returns the previous value, if any.
func (m *MapOf[K, V]) Swap(key K, value V) (previous V, loaded bool) {
	m.ensureInit()
	hash := m.hashOf(&key)
	if p := m.locate(key, hash); p != NoPos {
		n := m.nodeAt(p)
		previous, n.entry.Value = n.entry.Value, value
		return previous, true
	}
	m.add(key, value, hash)
	return previous, false
}

// Ref returns a pointer to the value for key, inserting a zero value
// first when the key is absent. The pointer stays valid until the entry
// is deleted; growth and rehashing never move entries.
func (m *MapOf[K, V]) Ref(key K) *V {
	m.ensureInit()
	hash := m.hashOf(&key)
	p := m.locate(key, hash)
	if p == NoPos {
		var zero V
		p = m.add(key, zero, hash)
	}
	return &m.nodeAt(p).entry.Value
}

// Delete removes the entry for key. Absent keys are a no-op.
func (m *MapOf[K, V]) Delete(key K) {
	if m.count == 0 {
		return
	}
	if p := m.locate(key, m.hashOf(&key)); p != NoPos {
		m.removeAt(p)
	}
}

// LoadAndDelete removes the entry for key, returning the value it held.
func (m *MapOf[K, V]) LoadAndDelete(key K) (value V, loaded bool) {
	if m.count == 0 {
		return
	}
	p := m.locate(key, m.hashOf(&key))
	if p == NoPos {
		return
	}
	value = m.nodeAt(p).entry.Value
	m.removeAt(p)
	return value, true
}

// Find returns the position of key's entry, or NoPos when absent.
func (m *MapOf[K, V]) Find(key K) Pos {
	if m.count == 0 {
		return NoPos
	}
	return m.locate(key, m.hashOf(&key))
}

// First returns the position of the first entry of the entry list, or
// NoPos when the map is empty.
func (m *MapOf[K, V]) First() Pos {
	if m.count == 0 {
		return NoPos
	}
	return m.head
}

// Next returns the position after p in the entry list, or NoPos at the
// end. It panics when p is retired or was never issued:
//
//	for p := m.First(); p != NoPos; p = m.Next(p) {
//		e := m.EntryAt(p)
//		...
//	}
func (m *MapOf[K, V]) Next(p Pos) Pos {
	return m.nodeAt(m.checkPos(p)).next
}

// EntryAt returns the live entry at position p. The Key must not be
// modified; the Value may be. It panics when p is retired or was never
// issued.
func (m *MapOf[K, V]) EntryAt(p Pos) *EntryOf[K, V] {
	return &m.nodeAt(m.checkPos(p)).entry
}

// DeleteAt removes the entry at position p, retiring p. Positions of
// other entries remain valid. It panics when p is retired or was never
// issued.
func (m *MapOf[K, V]) DeleteAt(p Pos) {
	m.removeAt(m.checkPos(p))
}

// RangeEntry iterates over entries in entry-list order: the entries of
// each bucket arrive consecutively. This order is neither insertion nor
// key order and changes across rehashes. The yielded pointer is the live
// entry, so its Key must not be modified.
//
// Deleting the entry currently yielded is allowed; shrinks such deletes
// would trigger are deferred until the iteration ends. Any other
// mutation during iteration leaves the traversal undefined.
func (m *MapOf[K, V]) RangeEntry(yield func(e *EntryOf[K, V]) bool) {
	if m.count == 0 {
		return
	}
	m.rangeDepth++
	defer m.endRange()
	for p := m.head; p != NoPos; {
		n := m.nodeAt(p)
		p = n.next
		if !yield(&n.entry) {
			return
		}
	}
}

// endRange settles a shrink deferred by deletes made during the walk,
// once the outermost walk is done. Walks that deleted nothing leave the
// directory alone, so reserved headroom survives read-only iteration.
// The length recheck stops the cascade when shrinkTo clamps at the floor.
func (m *MapOf[K, V]) endRange() {
	m.rangeDepth--
	if m.rangeDepth > 0 || !m.shrinkPending {
		return
	}
	m.shrinkPending = false
	for m.count < len(m.buckets)/mapLoadFactor {
		before := len(m.buckets)
		m.shrinkTo(int(float64(before) / mapGrowthRatio))
		if len(m.buckets) == before {
			return
		}
	}
}

// Range iterates over keys and values, with RangeEntry's order and
// mutation rules.
func (m *MapOf[K, V]) Range(yield func(key K, value V) bool) {
	m.RangeEntry(func(e *EntryOf[K, V]) bool {
		return yield(e.Key, e.Value)
	})
}

// All returns an iterator over keys and values, for range-over-func.
func (m *MapOf[K, V]) All() iter.Seq2[K, V] {
	return m.Range
}

// Keys returns an iterator over keys in entry-list order.
func (m *MapOf[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		m.RangeEntry(func(e *EntryOf[K, V]) bool {
			return yield(e.Key)
		})
	}
}

// Values returns an iterator over values in entry-list order.
func (m *MapOf[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		m.RangeEntry(func(e *EntryOf[K, V]) bool {
			return yield(e.Value)
		})
	}
}

// Size returns the number of entries.
func (m *MapOf[K, V]) Size() int {
	return m.count
}

// IsZero reports whether the map is empty.
func (m *MapOf[K, V]) IsZero() bool {
	return m.count == 0
}

// Clear removes all entries and releases the arena. The directory keeps
// its current bucket count; clearing is not a shrink.
func (m *MapOf[K, V]) Clear() {
	if m.buckets == nil {
		return
	}
	m.blocks = nil
	m.allocated = 0
	m.count = 0
	m.head, m.tail, m.freeHead = NoPos, NoPos, NoPos
	for b := range m.buckets {
		m.buckets[b] = NoPos
	}
}

// Reserve grows the directory so that sizeHint entries fit without
// further growth. It never shrinks the directory and does not move the
// shrink floor.
func (m *MapOf[K, V]) Reserve(sizeHint int) {
	m.ensureInit()
	if target := bucketsForSize(sizeHint); target > len(m.buckets) {
		m.rehash(target)
		m.totalGrowths++
	}
}

// Shrink rehashes the directory down to what the current count needs,
// regardless of the automatic policy. The shrink floor still applies.
func (m *MapOf[K, V]) Shrink() {
	if m.buckets == nil {
		return
	}
	m.shrinkTo((m.count + mapLoadFactor - 1) / mapLoadFactor)
}

// ToMap collects all entries into a built-in map.
func (m *MapOf[K, V]) ToMap() map[K]V {
	a := make(map[K]V, m.count)
	m.RangeEntry(func(e *EntryOf[K, V]) bool {
		a[e.Key] = e.Value
		return true
	})
	return a
}

// FromMap upserts every entry of source, overwriting present keys.
func (m *MapOf[K, V]) FromMap(source map[K]V) {
	m.ensureInit()
	m.Reserve(m.count + len(source))
	for k, v := range source {
		m.Store(k, v)
	}
}

// Clone returns an independent copy sharing no storage with m. The copy
// keeps m's hasher and seed, reuses its cached hashes, and is rebuilt
// from the configured initial directory through the normal insert path,
// so its directory reflects only its own growth history.
func (m *MapOf[K, V]) Clone() *MapOf[K, V] {
	clone := &MapOf[K, V]{}
	if m.buckets == nil {
		return clone
	}
	clone.keyHash = m.keyHash
	clone.seed = m.seed
	clone.minBuckets = m.minBuckets
	clone.shrinkDisabled = m.shrinkDisabled
	clone.blockShift = m.blockShift
	clone.blockMask = m.blockMask
	clone.head, clone.tail, clone.freeHead = NoPos, NoPos, NoPos
	clone.buckets = newDirectory(m.minBuckets)
	for p := m.head; p != NoPos; p = m.nodeAt(p).next {
		n := m.nodeAt(p)
		clone.add(n.entry.Key, n.entry.Value, n.hash)
	}
	return clone
}

// CopyFrom replaces m's contents with an independent copy of source,
// adopting source's hasher and seed. m and source may be the same map.
func (m *MapOf[K, V]) CopyFrom(source *MapOf[K, V]) {
	*m = *source.Clone()
}

// String implements fmt.Stringer, printing entries in entry-list order.
// Output is capped at 1024 entries.
func (m *MapOf[K, V]) String() string {
	const limit = 1024
	var sb strings.Builder
	sb.WriteString("MapOf[")
	printed := 0
	m.RangeEntry(func(e *EntryOf[K, V]) bool {
		if printed > 0 {
			sb.WriteByte(' ')
		}
		if printed == limit {
			sb.WriteString("...")
			return false
		}
		fmt.Fprintf(&sb, "%v:%v", e.Key, e.Value)
		printed++
		return true
	})
	sb.WriteByte(']')
	return sb.String()
}

// MarshalJSON encodes the map as a JSON object.
func (m *MapOf[K, V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToMap())
}

// UnmarshalJSON decodes a JSON object into the map, upserting its pairs
// into the existing entries.
func (m *MapOf[K, V]) UnmarshalJSON(data []byte) error {
	var a map[K]V
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	m.FromMap(a)
	return nil
}

// MapStats is MapOf statistics, populated by Stats.
type MapStats struct {
	// Buckets is the current directory size.
	Buckets int
	// OccupiedBuckets is the number of buckets heading a run;
	// EmptyBuckets is the remainder.
	OccupiedBuckets int
	EmptyBuckets    int
	// Size is the number of entries.
	Size int
	// MinRun and MaxRun bound run lengths over occupied buckets.
	MinRun int
	MaxRun int
	// TotalGrowths and TotalShrinks count directory rehashes in each
	// direction over the map's lifetime.
	TotalGrowths uint32
	TotalShrinks uint32
	// ArenaBlocks and ArenaCapacity describe entry storage; FreeSlots
	// counts recycled slots awaiting reuse.
	ArenaBlocks   int
	ArenaCapacity int
	FreeSlots     int
}

// ToString returns string representation of map stats.
func (s *MapStats) ToString() string {
	var sb strings.Builder
	sb.WriteString("MapStats{\n")
	sb.WriteString(fmt.Sprintf("Buckets: %d\n", s.Buckets))
	sb.WriteString(fmt.Sprintf("OccupiedBuckets: %d\n", s.OccupiedBuckets))
	sb.WriteString(fmt.Sprintf("EmptyBuckets: %d\n", s.EmptyBuckets))
	sb.WriteString(fmt.Sprintf("Size: %d\n", s.Size))
	sb.WriteString(fmt.Sprintf("MinRun: %d\n", s.MinRun))
	sb.WriteString(fmt.Sprintf("MaxRun: %d\n", s.MaxRun))
	sb.WriteString(fmt.Sprintf("TotalGrowths: %d\n", s.TotalGrowths))
	sb.WriteString(fmt.Sprintf("TotalShrinks: %d\n", s.TotalShrinks))
	sb.WriteString(fmt.Sprintf("ArenaBlocks: %d\n", s.ArenaBlocks))
	sb.WriteString(fmt.Sprintf("ArenaCapacity: %d\n", s.ArenaCapacity))
	sb.WriteString(fmt.Sprintf("FreeSlots: %d\n", s.FreeSlots))
	sb.WriteString("}\n")
	return sb.String()
}

// Stats returns MapStats for the MapOf. Walks every bucket run and the
// free chain, so it is O(n); meant for diagnostics only.
func (m *MapOf[K, V]) Stats() *MapStats {
	stats := &MapStats{
		Buckets:      len(m.buckets),
		Size:         m.count,
		TotalGrowths: m.totalGrowths,
		TotalShrinks: m.totalShrinks,
		ArenaBlocks:  len(m.blocks),
	}
	if m.buckets == nil {
		return stats
	}
	stats.ArenaCapacity = len(m.blocks) * (int(m.blockMask) + 1)
	for p := m.freeHead; p != NoPos; p = m.nodeAt(p).next {
		stats.FreeSlots++
	}
	stats.MinRun = math.MaxInt
	for b := range m.buckets {
		if m.buckets[b] == NoPos {
			stats.EmptyBuckets++
			continue
		}
		stats.OccupiedBuckets++
		run := 0
		for p := m.buckets[b]; p != NoPos; {
			n := m.nodeAt(p)
			if m.bucketIndex(n.hash) != b {
				break
			}
			run++
			p = n.next
		}
		if run < stats.MinRun {
			stats.MinRun = run
		}
		if run > stats.MaxRun {
			stats.MaxRun = run
		}
	}
	if stats.OccupiedBuckets == 0 {
		stats.MinRun = 0
	}
	return stats
}

// hashFunc matches the runtime's hash function shape: a pointer to the
// key and a seed.
type hashFunc func(unsafe.Pointer, uintptr) uintptr

// defaultKeyHasher returns the hash function used for K when no custom
// hasher is supplied: Go's built-in hasher in the general case, with a
// multiply-and-fold fast path for integer keys. Bucket indices are a
// modulo over a non-power-of-two directory, which reads low bits; a bare
// golden-ratio multiply keeps a key's trailing zero bits, so
// stride-aligned keys need the high-to-low fold to spread.
func defaultKeyHasher[K comparable]() hashFunc {
	switch any(*new(K)).(type) {
	case uint, int, uintptr:
		return func(ptr unsafe.Pointer, seed uintptr) uintptr {
			return mixIntKey(*(*uintptr)(ptr), seed)
		}
	case uint64, int64:
		if bits.UintSize == 32 {
			return func(ptr unsafe.Pointer, seed uintptr) uintptr {
				v := *(*uint64)(ptr)
				return mixIntKey(uintptr(v)^uintptr(v>>32), seed)
			}
		}
		return func(ptr unsafe.Pointer, seed uintptr) uintptr {
			return mixIntKey(uintptr(*(*uint64)(ptr)), seed)
		}
	case uint32, int32:
		return func(ptr unsafe.Pointer, seed uintptr) uintptr {
			return mixIntKey(uintptr(*(*uint32)(ptr)), seed)
		}
	case uint16, int16:
		return func(ptr unsafe.Pointer, seed uintptr) uintptr {
			return mixIntKey(uintptr(*(*uint16)(ptr)), seed)
		}
	case uint8, int8:
		return func(ptr unsafe.Pointer, seed uintptr) uintptr {
			return mixIntKey(uintptr(*(*uint8)(ptr)), seed)
		}
	default:
		return builtInKeyHasher[K]()
	}
}

// mixIntKey finishes the integer fast paths: golden-ratio multiply, then
// a fold moving the multiply's well-mixed high bits down to where the
// directory modulo reads. The seed keeps layouts map-local, like the
// built-in hasher's.
func mixIntKey(v, seed uintptr) uintptr {
	h := (v ^ seed) * hashPrime
	return h ^ (h >> (bits.UintSize / 2))
}

// builtInKeyHasher obtains the hash function the runtime itself would
// use for a map keyed by K, by inspecting the runtime map type.
//
// Notes:
//   - Depends on the runtime type layout; revisit on Go major upgrades.
func builtInKeyHasher[K comparable]() hashFunc {
	var goodMap map[K]struct{}
	return rtTypeOf(goodMap).mapType().Hasher
}

type rtFlag uint8
type rtKind uint8
type rtNameOff int32
type rtTypeOff int32

// rtType mirrors the runtime type descriptor.
type rtType struct {
	Size_       uintptr
	PtrBytes    uintptr
	Hash        uint32
	TFlag       rtFlag
	Align_      uint8
	FieldAlign_ uint8
	Kind_       rtKind
	Equal       func(unsafe.Pointer, unsafe.Pointer) bool
	GCData      *byte
	Str         rtNameOff
	PtrToThis   rtTypeOff
}

func (t *rtType) mapType() *rtMapType {
	return (*rtMapType)(unsafe.Pointer(t))
}

// rtMapType mirrors the runtime map type descriptor. Hasher sits at the
// same offset across the bucket and slot-group map eras.
type rtMapType struct {
	rtType
	Key   *rtType
	Elem  *rtType
	Group *rtType
	// Hasher hashes a key: (pointer to key, seed) -> hash
	Hasher func(unsafe.Pointer, uintptr) uintptr
}

type rtEmptyInterface struct {
	Type *rtType
	Data unsafe.Pointer
}

func rtTypeOf(a any) *rtType {
	eface := *(*rtEmptyInterface)(unsafe.Pointer(&a))
	return (*rtType)(noescape(unsafe.Pointer(eface.Type)))
}

// noescape hides a pointer from escape analysis. Copied from the
// runtime; use only when the pointer is known not to escape.
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	//nolint:staticcheck
	return unsafe.Pointer(x ^ 0)
}
