// Package cmap provides a sharded concurrent map.
//
// Keys are distributed over a power-of-two number of shards by a
// caller-supplied hash function; every shard has its own RWMutex, so
// operations on keys in different shards never contend.
//
// Usage:
//
//	m := cmap.New[domain.BufferTag, *history](hashTag)
//	h, loaded := m.GetOrSet(tag, newHistory())
//
// String-keyed maps can use NewString, which hashes with murmur3.
//
// Thread Safety:
//
// All operations are thread-safe. Read operations (Get, Has, Range) use
// RLock, write operations (Set, Delete, GetOrSet) use Lock.
package cmap
