package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateClone(t *testing.T) {
	st := State{"heroes": []string{"X"}}
	cp := st.Clone()

	cp["villains"] = []string{"Y"}
	assert.NotContains(t, st, "villains")

	var nilState State
	assert.Equal(t, State{}, nilState.Clone())
}

func TestStateSlice(t *testing.T) {
	st := State{"heroes": []string{"X"}}

	v, ok := st.Slice("heroes")
	assert.True(t, ok)
	assert.Equal(t, []string{"X"}, v)

	_, ok = st.Slice("villains")
	assert.False(t, ok)
}

func TestStateSortedKeys(t *testing.T) {
	st := State{"b": 1, "a": 2, "c": 3}
	assert.Equal(t, []string{"a", "b", "c"}, st.SortedKeys())
}

func TestAsState(t *testing.T) {
	st, ok := AsState(State{"a": 1})
	assert.True(t, ok)
	assert.Equal(t, State{"a": 1}, st)

	st, ok = AsState(map[string]any{"a": 1})
	assert.True(t, ok)
	assert.Equal(t, State{"a": 1}, st)

	_, ok = AsState([]string{"a"})
	assert.False(t, ok)

	_, ok = AsState(nil)
	assert.False(t, ok)
}
