// Package hindex implements an open-addressed hash table using
// robin-hood displacement on insert, tombstone-aware probing on
// delete, and in-place doubling growth.
//
// It is the secondary-index primitive the flow-table engine builds
// its by-id, by-priority and by-match indexes on top of. Grounded
// function-for-function on hmap.c: hashes and objects are kept in two
// parallel arrays rather than a single array of pairs, home bucket is
// hash mod size, and deletion sets a tombstone bit rather than
// shifting the probe chain.
package hindex

const (
	initialSize   = 8
	defaultLoad   = 0.8
	tombstoneBit  = uint32(1) << 31
	hashValueBits = tombstoneBit - 1
	freeSentinel  = uint32(0)
)

// HashFunc computes a 31-bit-significant hash of a key. The top bit is
// reserved for the tombstone flag and is cleared by the index before
// storage; callers need not avoid it.
type HashFunc func(key interface{}) uint32

// EqualFunc reports whether two keys are equal.
type EqualFunc func(a, b interface{}) bool

// KeyFunc extracts the index key from a stored object.
//
// This substitutes for the byte-offset-of-field technique the C
// original uses to locate a key embedded in a fixed-layout struct: Go
// has no portable offsetof, so the index takes an extractor function
// instead, per the design note that licenses exactly this
// substitution.
type KeyFunc func(object interface{}) interface{}

// Index is an open-addressed robin-hood hash table. The zero value is
// not usable; construct with New.
type Index struct {
	hashes  []uint32
	objects []interface{}
	count   int

	key   KeyFunc
	hash  HashFunc
	equal EqualFunc

	loadFactor float64
}

// New creates an empty index with the default load factor (0.8).
func New(key KeyFunc, hash HashFunc, equal EqualFunc) *Index {
	return NewWithLoadFactor(key, hash, equal, defaultLoad)
}

// NewWithLoadFactor creates an empty index that grows once its
// occupancy would exceed loadFactor. loadFactor must be in (0, 1);
// values at or above 1 are clamped to just under 1 to guarantee an
// always-free slot exists for the robin-hood early-exit invariant.
func NewWithLoadFactor(key KeyFunc, hash HashFunc, equal EqualFunc, loadFactor float64) *Index {
	if loadFactor <= 0 {
		loadFactor = defaultLoad
	}
	if loadFactor >= 1 {
		loadFactor = 0.99
	}
	idx := &Index{
		key:        key,
		hash:       hash,
		equal:      equal,
		loadFactor: loadFactor,
	}
	idx.allocate(initialSize)
	return idx
}

func (idx *Index) allocate(size int) {
	idx.hashes = make([]uint32, size)
	idx.objects = make([]interface{}, size)
}

// Count returns the number of live (non-tombstone) entries.
func (idx *Index) Count() int {
	return idx.count
}

func (idx *Index) size() int {
	return len(idx.hashes)
}

func (idx *Index) threshold() float64 {
	return idx.loadFactor * float64(idx.size())
}

// index returns the bucket for hash at the given probe distance.
func (idx *Index) index(hash, distance uint32) int {
	return int((hash + distance) & uint32(idx.size()-1))
}

// distance computes how far the object currently occupying slot i (with
// stored hash bucketHash) sits from its own home bucket.
func (idx *Index) distance(i int, bucketHash uint32) int {
	start := idx.index(bucketHash, 0)
	return (i + idx.size() - start) & (idx.size() - 1)
}

// calcHash clears the tombstone bit and forces the hash to differ from
// the reserved FREE sentinel, mirroring hmap_calc_hash.
func calcHash(h uint32) uint32 {
	h &^= tombstoneBit
	if h == freeSentinel {
		h = 1
	}
	return h
}

func isTombstone(h uint32) bool {
	return h&tombstoneBit != 0
}

// Lookup returns the next object stored under key, resuming at the
// probe distance recorded in *state (0 if *state is the zero value, on
// the first call). On a hit, *state is advanced past the found slot so
// a repeated call walks successive duplicates sharing the same key.
func (idx *Index) Lookup(key interface{}, state *int) (interface{}, bool) {
	hash := calcHash(idx.hash(key))
	size := idx.size()

	distance := 0
	if state != nil {
		distance = *state
	}

	for ; distance < size; distance++ {
		i := idx.index(hash, uint32(distance))
		bucketHash := idx.hashes[i]

		if bucketHash == hash {
			object := idx.objects[i]
			if idx.equal(key, idx.key(object)) {
				if state != nil {
					*state = distance + 1
				}
				return object, true
			}
		} else if bucketHash == freeSentinel || idx.distance(i, bucketHash) < distance {
			// Robin-hood early exit: the occupant here is
			// closer to its own home than we are to ours,
			// so our key cannot appear on a later slot.
			break
		}
	}

	return nil, false
}

// Insert adds object, keyed by key(object), growing the table first if
// the resulting occupancy would exceed the load factor. Multiple
// objects may share a key; Insert never overwrites an existing entry
// for the same key, it always adds a new slot.
func (idx *Index) Insert(object interface{}) {
	if float64(idx.count+1) > idx.threshold() {
		idx.grow()
	}
	idx.insert(calcHash(idx.hash(idx.key(object))), object)
	idx.count++
}

// insert runs the robin-hood steal loop without touching idx.count;
// callers that already account for count (Insert, grow) call this
// directly.
func (idx *Index) insert(hash uint32, object interface{}) {
	size := idx.size()

	for distance := uint32(0); distance < uint32(size); distance++ {
		i := idx.index(hash, distance)
		bucketHash := idx.hashes[i]
		bucketDistance := uint32(idx.distance(i, bucketHash))
		shouldSteal := distance > bucketDistance

		if bucketHash == freeSentinel || (isTombstone(bucketHash) && shouldSteal) {
			idx.hashes[i] = hash
			idx.objects[i] = object
			return
		} else if shouldSteal {
			// Swap with the current occupant and keep going to
			// find it a new home.
			idx.hashes[i], hash = hash, bucketHash
			idx.objects[i], object = object, idx.objects[i]
			distance = bucketDistance
		}
	}

	panic("hindex: insert loop exhausted table without finding a slot")
}

// Remove deletes the slot holding object (identified by key hash and
// object identity, not key equality, so one of several same-keyed
// objects can be removed without disturbing the others). Reports
// whether an entry was found and removed.
func (idx *Index) Remove(object interface{}) bool {
	hash := calcHash(idx.hash(idx.key(object)))
	size := idx.size()

	for distance := uint32(0); distance < uint32(size); distance++ {
		i := idx.index(hash, distance)
		bucketHash := idx.hashes[i]
		if bucketHash == hash && idx.objects[i] == object {
			idx.hashes[i] = hash | tombstoneBit
			idx.objects[i] = nil
			idx.count--
			return true
		}
	}

	return false
}

// grow doubles the table size and reinserts every live (non-FREE,
// non-tombstone) slot; tombstones are dropped. Count is recomputed
// during reinsertion, matching hmap_grow.
func (idx *Index) grow() {
	oldHashes := idx.hashes
	oldObjects := idx.objects

	idx.count = 0
	idx.allocate(len(oldHashes) * 2)

	for i, h := range oldHashes {
		if h == freeSentinel || isTombstone(h) {
			continue
		}
		idx.insert(h, oldObjects[i])
		idx.count++
	}
}

// Stats returns the mean and variance of probe distance across all
// live slots, a diagnostic exposed for operational logging of index
// health after growth.
//
// Grounded on hmap_stats.
func (idx *Index) Stats() (mean, variance float64) {
	if idx.count == 0 {
		return 0, 0
	}

	var sum, sumSquared float64
	for i, h := range idx.hashes {
		if h == freeSentinel || isTombstone(h) {
			continue
		}
		d := float64(idx.distance(i, h))
		sum += d
		sumSquared += d * d
	}

	n := float64(idx.count)
	mean = sum / n
	variance = (sumSquared - sum*sum/n) / n
	return mean, variance
}
