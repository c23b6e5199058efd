package listmap

import (
	"github.com/cespare/xxhash/v2"
)

// XXHashString hashes a string key with 64-bit xxHash, shaped to plug
// straight into NewMapOfWithHasher. Unlike the built-in hasher it is a
// pure function of key and seed, so a fixed seed gives the same entry
// layout on every run of the same platform. Layouts are word-size
// specific, the seed premix multiplies by hashPrime and the 64-bit sum
// narrows to uintptr. Use it directly:
//
//	m := NewMapOfWithHasher[string, int](XXHashString)
//
// or, pinning the seed for reproducible layouts:
//
//	m := NewMapOfWithHasher[string, int](
//		func(key string, _ uintptr) uintptr {
//			return XXHashString(key, 42)
//		},
//	)
func XXHashString(key string, seed uintptr) uintptr {
	var d xxhash.Digest
	d.ResetWithSeed(uint64(seed) * hashPrime)
	_, _ = d.WriteString(key)
	return uintptr(d.Sum64())
}

// XXHashBytes is the byte-slice form of XXHashString, for callers that
// key maps by string views of byte data.
func XXHashBytes(key []byte, seed uintptr) uintptr {
	var d xxhash.Digest
	d.ResetWithSeed(uint64(seed) * hashPrime)
	_, _ = d.Write(key)
	return uintptr(d.Sum64())
}
