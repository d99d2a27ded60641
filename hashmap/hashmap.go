// Package hashmap implements the two-choice bucketed hashmap of spec.md
// §4.1: a fixed-capacity, insert-and-lookup-only map with no eviction and
// no cuckoo relocation. It is ported field-for-field from
// original_source/module/pna_hashmap.c (credited there to Jon Turner's
// 2011 HashMap.cpp), generalized with Go generics instead of the C
// version's raw key_size/value_size byte spans.
package hashmap

import "github.com/twmb/murmur3"

// BktSize is the number of slots per bucket half.
const BktSize = 4

// Seeds for the two independent hash functions, per spec.md §6. The
// original calls MurmurHash3_x64_128(key, len, func ? C0 : C1, out) with
// func=0 for the left half and func=1 for the right half, i.e. the left
// half is seeded with C1 and the right half with C0 — preserved here.
const (
	seedC0 uint32 = 0xa96347c5
	seedLeft         = seedC1
	seedC1 uint32 = 0xe65ac2d3
	seedRight        = seedC0
)

type bucket [BktSize]uint32

type pair[K comparable, V any] struct {
	key   K
	value V
}

// Map is a fixed-capacity two-choice bucketed hashmap. Keys are compared
// with Go's built-in == (K must be comparable); keyBytes supplies a stable
// byte encoding of a key for hashing only.
type Map[K comparable, V any] struct {
	keyBytes func(K) []byte

	nPairs   uint32
	nBuckets uint32
	bktMask  uint32
	kvxMask  uint32
	fpMask   uint32

	// buckets has length 2*nBuckets: [0, nBuckets) is the left half,
	// [nBuckets, 2*nBuckets) is the right half.
	buckets []bucket
	pairs   []pair[K, V]
	nextIdx uint32
}

// New creates a hashmap with room for at least capacity distinct keys.
// n_buckets starts at 4 and doubles until 8*n_buckets > capacity, matching
// hashmap_create's sizing.
func New[K comparable, V any](capacity int, keyBytes func(K) []byte) *Map[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	m := &Map[K, V]{keyBytes: keyBytes, nPairs: uint32(capacity)}
	m.nBuckets = 4
	for 8*m.nBuckets <= m.nPairs {
		m.nBuckets <<= 1
	}
	m.bktMask = m.nBuckets - 1
	m.kvxMask = 8*m.nBuckets - 1
	m.fpMask = ^m.kvxMask
	m.buckets = make([]bucket, 2*m.nBuckets)
	m.pairs = make([]pair[K, V], m.nPairs)
	return m
}

// Cap returns the configured key capacity (n_pairs).
func (m *Map[K, V]) Cap() int { return int(m.nPairs) }

// Len returns the number of successfully inserted pairs so far.
func (m *Map[K, V]) Len() int { return int(m.nextIdx) }

// hash computes the bucket index and fingerprint for one of the two hash
// functions. A fingerprint of exactly 0 is reserved to mean "empty slot",
// so a genuine zero result is nudged to the lowest bit of the fingerprint
// region instead — deterministic, so Get and Put always agree.
func (m *Map[K, V]) hash(key K, seed uint32) (bkt, fp uint32) {
	h1, h2 := murmur3.SeedSum128(uint64(seed), uint64(seed), m.keyBytes(key))
	bkt = uint32(h1) & m.bktMask
	fp = uint32(h2) & m.fpMask
	if fp == 0 {
		fp = (m.kvxMask + 1) & m.fpMask
	}
	return
}

// Get looks up key and returns its value and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	b0, fp0 := m.hash(key, seedLeft)
	for i := 0; i < BktSize; i++ {
		slot := m.buckets[b0][i]
		if slot&m.fpMask == fp0 {
			if idx := slot & m.kvxMask; m.pairs[idx].key == key {
				return m.pairs[idx].value, true
			}
		}
	}

	b1, fp1 := m.hash(key, seedRight)
	b1 += m.nBuckets
	for i := 0; i < BktSize; i++ {
		slot := m.buckets[b1][i]
		if slot&m.fpMask == fp1 {
			if idx := slot & m.kvxMask; m.pairs[idx].key == key {
				return m.pairs[idx].value, true
			}
		}
	}

	var zero V
	return zero, false
}

// Put inserts key/value and reports whether the insert succeeded. It
// fails if the pair store is full, or if both candidate buckets are full
// (the two-choice bound) — in neither case is any prior entry disturbed.
func (m *Map[K, V]) Put(key K, value V) bool {
	if m.nextIdx >= m.nPairs {
		return false
	}

	b0, fp0 := m.hash(key, seedLeft)
	n0, i0 := 0, 0
	for i := 0; i < BktSize; i++ {
		if m.buckets[b0][i] == 0 {
			n0++
			i0 = i
		}
	}

	b1, fp1 := m.hash(key, seedRight)
	b1 += m.nBuckets
	n1, i1 := 0, 0
	for i := 0; i < BktSize; i++ {
		if m.buckets[b1][i] == 0 {
			n1++
			i1 = i
		}
	}

	if n0+n1 == 0 {
		return false
	}

	idx := m.nextIdx
	m.nextIdx++
	m.pairs[idx] = pair[K, V]{key: key, value: value}

	// Store in the less-loaded half; prefer the left half on a tie.
	if n0 >= n1 {
		m.buckets[b0][i0] = fp0 | (idx & m.kvxMask)
	} else {
		m.buckets[b1][i1] = fp1 | (idx & m.kvxMask)
	}
	return true
}

// Each calls fn for every key/value pair currently stored, in insertion
// order. fn must not call Put or Reset.
func (m *Map[K, V]) Each(fn func(K, V)) {
	for i := uint32(0); i < m.nextIdx; i++ {
		fn(m.pairs[i].key, m.pairs[i].value)
	}
}

// Reset clears every bucket and pair, and rewinds the write cursor.
func (m *Map[K, V]) Reset() {
	for i := range m.buckets {
		m.buckets[i] = bucket{}
	}
	var zero pair[K, V]
	for i := range m.pairs {
		m.pairs[i] = zero
	}
	m.nextIdx = 0
}
