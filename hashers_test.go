package listmap

import (
	"strconv"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func TestXXHashString_MatchesSum64(t *testing.T) {
	for i := 0; i < 1000; i++ {
		s := strconv.Itoa(i)
		// Seed zero is plain xxHash64.
		require.Equal(t, uintptr(xxhash.Sum64String(s)), XXHashString(s, 0))
		require.Equal(t, XXHashString(s, 7), XXHashString(s, 7))
		require.Equal(t, XXHashString(s, 7), XXHashBytes([]byte(s), 7))
	}
}

func TestXXHashString_SeedChangesHash(t *testing.T) {
	differing := 0
	for i := 0; i < 1000; i++ {
		s := strconv.Itoa(i)
		if XXHashString(s, 1) != XXHashString(s, 2) {
			differing++
		}
	}
	require.Equal(t, 1000, differing)
}

func TestXXHash_ReproducibleLayout(t *testing.T) {
	newFixed := func() *MapOf[string, int] {
		return NewMapOfWithHasher[string, int](func(key string, _ uintptr) uintptr {
			return XXHashString(key, 42)
		})
	}
	m1, m2 := newFixed(), newFixed()
	for i := 0; i < 1000; i++ {
		m1.Store(strconv.Itoa(i), i)
		m2.Store(strconv.Itoa(i), i)
	}
	var keys1, keys2 []string
	for k := range m1.Keys() {
		keys1 = append(keys1, k)
	}
	for k := range m2.Keys() {
		keys2 = append(keys2, k)
	}
	require.Equal(t, keys1, keys2)
}

func TestXXHash_SpreadsBuckets(t *testing.T) {
	const numEntries = 10_000
	m := NewMapOfWithHasher[string, int](XXHashString)
	for i := 0; i < numEntries; i++ {
		m.Store("key_"+strconv.Itoa(i), i)
	}
	stats := m.Stats()
	require.Equal(t, numEntries, stats.Size)
	require.Greater(t, stats.OccupiedBuckets, stats.Buckets/2)
	require.Less(t, stats.MaxRun, 64)
	t.Log(stats.ToString())
}

func TestDefaultHasher_IntKeysSpread(t *testing.T) {
	// Stride-aligned integer keys are the worst case for a modulo
	// directory: a bare multiply by an odd constant keeps their trailing
	// zero bits, and hash%buckets then only ever lands on bucket indices
	// sharing a residue. The multiply-and-fold must reach all of them.
	const numEntries = 10_000
	m := NewMapOf[int, int]()
	for i := 0; i < numEntries; i++ {
		m.Store(i*64, i)
	}
	stats := m.Stats()
	require.Greater(t, stats.OccupiedBuckets, stats.Buckets/2)
	require.Less(t, stats.MaxRun, 64)
	unaligned := 0
	for b := range m.buckets {
		if m.buckets[b] != NoPos && b%8 != 0 {
			unaligned++
		}
	}
	require.NotZero(t, unaligned, "stride-64 keys stuck on a bucket residue lattice")
	t.Log(stats.ToString())
}

func TestDefaultHasher_IntDiffersAcrossMaps(t *testing.T) {
	// The integer fast paths mix the per-map seed; two maps almost
	// surely cache different hashes for the same key. Equal hashes
	// across 64 keys would mean the seed is ignored.
	m1 := NewMapOf[int, int]()
	m2 := NewMapOf[int, int]()
	same := 0
	for i := 0; i < 64; i++ {
		m1.Store(i, i)
		m2.Store(i, i)
		h1 := m1.nodeAt(m1.Find(i)).hash
		h2 := m2.nodeAt(m2.Find(i)).hash
		if h1 == h2 {
			same++
		}
	}
	require.Less(t, same, 64)
}

func TestDefaultHasher_IntWidths(t *testing.T) {
	t.Run("Int8", func(t *testing.T) {
		m := NewMapOf[int8, int]()
		for i := 0; i < 128; i++ {
			m.Store(int8(i), i)
		}
		require.Equal(t, 128, m.Size())
		for i := 0; i < 128; i++ {
			v, ok := m.Load(int8(i))
			require.True(t, ok)
			require.Equal(t, i, v)
		}
	})
	t.Run("Uint16", func(t *testing.T) {
		m := NewMapOf[uint16, int]()
		for i := 0; i < 1000; i++ {
			m.Store(uint16(i), i)
		}
		require.Equal(t, 1000, m.Size())
	})
	t.Run("Uint64", func(t *testing.T) {
		m := NewMapOf[uint64, int]()
		for i := 0; i < 1000; i++ {
			m.Store(uint64(i)<<32, i)
		}
		require.Equal(t, 1000, m.Size())
		stats := m.Stats()
		require.Less(t, stats.MaxRun, 64)
	})
	t.Run("Uintptr", func(t *testing.T) {
		m := NewMapOf[uintptr, int]()
		for i := 0; i < 1000; i++ {
			m.Store(uintptr(i), i)
		}
		require.Equal(t, 1000, m.Size())
	})
}

func TestDefaultHasher_StringDiffersAcrossMaps(t *testing.T) {
	// The built-in hasher is seeded per map instance; two maps almost
	// surely cache different hashes for the same key. This only checks
	// that per-instance seeding is actually applied, equal hashes across
	// 64 keys would mean the seed is ignored.
	m1 := NewMapOf[string, int]()
	m2 := NewMapOf[string, int]()
	same := 0
	for i := 0; i < 64; i++ {
		s := strconv.Itoa(i)
		m1.Store(s, i)
		m2.Store(s, i)
		h1 := m1.nodeAt(m1.Find(s)).hash
		h2 := m2.nodeAt(m2.Find(s)).hash
		if h1 == h2 {
			same++
		}
	}
	require.Less(t, same, 64)
}
