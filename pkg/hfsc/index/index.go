// Copyright 2026 ETH Zurich
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package index provides an ordered index of handles keyed by a 64 bit value.
//
// Entries with equal keys are ordered by insertion, an entry that is updated
// is ordered after all entries that already carry the new key. The index
// never owns the entities its handles refer to.
package index

import (
	"github.com/google/btree"
)

const degree = 8

type item[H comparable] struct {
	key uint64
	seq uint64
	h   H
}

func less[H comparable](a, b item[H]) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.seq < b.seq
}

// Index is an ordered set of handles. The zero value is not usable, use New.
type Index[H comparable] struct {
	tree    *btree.BTreeG[item[H]]
	members map[H]item[H]
	seq     uint64
}

// New creates an empty index.
func New[H comparable]() *Index[H] {
	return &Index[H]{
		tree:    btree.NewG(degree, less[H]),
		members: make(map[H]item[H]),
	}
}

// Insert adds h with the given key. If h is already present, it is moved to
// the new key.
func (x *Index[H]) Insert(h H, key uint64) {
	if old, ok := x.members[h]; ok {
		x.tree.Delete(old)
	}
	x.seq++
	it := item[H]{key: key, seq: x.seq, h: h}
	x.tree.ReplaceOrInsert(it)
	x.members[h] = it
}

// Update moves h to the new key. It reports false and does nothing if h is
// not present.
func (x *Index[H]) Update(h H, key uint64) bool {
	if _, ok := x.members[h]; !ok {
		return false
	}
	x.Insert(h, key)
	return true
}

// Remove deletes h. It reports whether h was present.
func (x *Index[H]) Remove(h H) bool {
	old, ok := x.members[h]
	if !ok {
		return false
	}
	x.tree.Delete(old)
	delete(x.members, h)
	return true
}

// Contains reports whether h is present.
func (x *Index[H]) Contains(h H) bool {
	_, ok := x.members[h]
	return ok
}

// Key returns the key h is currently stored under.
func (x *Index[H]) Key(h H) (uint64, bool) {
	it, ok := x.members[h]
	return it.key, ok
}

// Min returns the first entry.
func (x *Index[H]) Min() (H, uint64, bool) {
	it, ok := x.tree.Min()
	return it.h, it.key, ok
}

// Max returns the last entry.
func (x *Index[H]) Max() (H, uint64, bool) {
	it, ok := x.tree.Max()
	return it.h, it.key, ok
}

// Ascend calls fn for every entry in order until fn returns false.
func (x *Index[H]) Ascend(fn func(h H, key uint64) bool) {
	x.tree.Ascend(func(it item[H]) bool {
		return fn(it.h, it.key)
	})
}

// AscendUpTo calls fn in order for every entry with a key not larger than
// limit until fn returns false.
func (x *Index[H]) AscendUpTo(limit uint64, fn func(h H, key uint64) bool) {
	x.tree.Ascend(func(it item[H]) bool {
		if it.key > limit {
			return false
		}
		return fn(it.h, it.key)
	})
}

// Len returns the number of entries.
func (x *Index[H]) Len() int {
	return x.tree.Len()
}

// Clear removes all entries.
func (x *Index[H]) Clear() {
	x.tree.Clear(false)
	clear(x.members)
}
