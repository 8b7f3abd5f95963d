// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package multiindex composes a fixed tuple of intrusive AVL sets over the
// same nodes, one set per configured key. Every node carries one hook per
// set, laid out contiguously, so each set threads the node through its own
// hook. All sets are ordered and unique.
package multiindex

import (
	"github.com/Fantom-foundation/Chainbase/backend/avltree"
	"github.com/Fantom-foundation/Chainbase/segment"
)

// Set is the tuple of indexes. Index 0 is the primary index.
type Set struct {
	trees []*avltree.Tree
}

// New composes a multi-index set from the per-key trees.
func New(trees []*avltree.Tree) *Set {
	return &Set{trees: trees}
}

// Count returns the number of indexes.
func (s *Set) Count() int {
	return len(s.trees)
}

// Index returns the tree of the index at the given position.
func (s *Set) Index(i int) *avltree.Tree {
	return s.trees[i]
}

// Insert links node n into all indexes starting at the given position.
// On a conflict the already performed insertions are undone and the
// position of the conflicting index is reported.
func (s *Set) Insert(start int, n segment.Offset) (conflict int, ok bool) {
	for i := start; i < len(s.trees); i++ {
		if _, inserted := s.trees[i].InsertUnique(n); !inserted {
			for j := start; j < i; j++ {
				s.trees[j].Erase(n)
			}
			return i, false
		}
	}
	return 0, true
}

// PushBackPrimary appends node n at the end of the primary index without
// consulting the comparator. Valid only when n's primary key is known to
// order last, which holds for freshly generated ids.
func (s *Set) PushBackPrimary(n segment.Offset) {
	s.trees[0].PushBack(n)
}

// Erase unlinks node n from all indexes starting at the given position.
func (s *Set) Erase(start int, n segment.Offset) {
	for i := start; i < len(s.trees); i++ {
		s.trees[i].Erase(n)
	}
}

// PostModify re-seats a just-modified node in every index starting at the
// given position. An index whose neighbors show no order violation is
// left untouched. With unique set, a re-insertion that meets an equal key
// leaves the node linked right before the conflicting position and
// reports failure so the caller can roll the modification back; without,
// duplicates are linked and tolerated as transient.
func (s *Set) PostModify(start int, n segment.Offset, unique bool) bool {
	for i := start; i < len(s.trees); i++ {
		tree := s.trees[i]
		fixup := false
		if prev := tree.Prev(n); prev != 0 && tree.Compare(prev, n) >= 0 {
			fixup = true
		}
		if next := tree.Next(n); next != 0 && tree.Compare(n, next) >= 0 {
			fixup = true
		}
		if !fixup {
			continue
		}
		tree.Erase(n)
		if unique {
			pos, inserted := tree.InsertUnique(n)
			if !inserted {
				tree.InsertBefore(pos, n)
				return false
			}
		} else {
			tree.InsertEqual(n)
		}
	}
	return true
}
