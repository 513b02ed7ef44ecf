package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStackInf(t *testing.T) {
	st := NewStackInf()
	assert.Nil(t, st.Pop())

	for i := 0; i < 20; i++ {
		st.Push(i)
	}
	assert.Equal(t, 20, st.Len())
	assert.Equal(t, 19, st.Peek())

	for i := 19; i >= 0; i-- {
		assert.Equal(t, i, st.Pop())
	}
	assert.Equal(t, 0, st.Len())

	st.Push("a")
	assert.Equal(t, "a", st.Pop())
}
