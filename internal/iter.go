package internal

import (
	"cmp"
	"iter"
	"slices"
)

// IterSeq2Concat chains define tables into a single sequence.
func IterSeq2Concat[K any, V any](seqs ...iter.Seq2[K, V]) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, seq := range seqs {
			for key, value := range seq {
				if !yield(key, value) {
					return
				}
			}
		}
	}
}

// IterSeq2Sorted yields a sequence ordered by key. When a key repeats,
// the last value seen wins, as it would when predefining equates.
func IterSeq2Sorted[K cmp.Ordered, V any](seq iter.Seq2[K, V]) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		table := map[K]V{}
		for key, value := range seq {
			table[key] = value
		}

		keys := make([]K, 0, len(table))
		for key := range table {
			keys = append(keys, key)
		}
		slices.Sort(keys)

		for _, key := range keys {
			if !yield(key, table[key]) {
				return
			}
		}
	}
}
