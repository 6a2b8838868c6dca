package internal

import (
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIterSeq2Concat(t *testing.T) {
	assert := assert.New(t)

	first := map[string]int{"A": 1}
	second := map[string]int{"B": 2, "C": 3}

	seen := map[string]int{}
	for key, value := range IterSeq2Concat(maps.All(first), maps.All(second)) {
		seen[key] = value
	}
	assert.Equal(map[string]int{"A": 1, "B": 2, "C": 3}, seen)

	count := 0
	for range IterSeq2Concat(maps.All(first), maps.All(second)) {
		count++
		break
	}
	assert.Equal(1, count)

	for range IterSeq2Concat[string, int]() {
		t.Fatal("empty concatenation yielded")
	}
}

func TestIterSeq2Sorted(t *testing.T) {
	assert := assert.New(t)

	first := map[string]int{"SYS_EXIT": 0, "DATA_BASE": 2}
	second := map[string]int{"KEY_W": 1, "DATA_BASE": 4}

	var keys []string
	var values []int
	for key, value := range IterSeq2Sorted(IterSeq2Concat(maps.All(first), maps.All(second))) {
		keys = append(keys, key)
		values = append(values, value)
	}

	assert.Equal([]string{"DATA_BASE", "KEY_W", "SYS_EXIT"}, keys)
	assert.Equal([]int{4, 1, 0}, values)
}
