package sliceutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoveDuplicates(t *testing.T) {
	assert.Equal(t, []int{}, RemoveDuplicates([]int(nil)))
	assert.Equal(t, []int{3, 1, 2}, RemoveDuplicates([]int{3, 1, 3, 2, 1}))

	in := []string{"a", "a"}
	_ = RemoveDuplicates(in)
	assert.Equal(t, []string{"a", "a"}, in)
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, Union([]int{1, 2}, []int{2, 3}))
	assert.Equal(t, []int{4}, Union(nil, []int{4, 4}))
}
