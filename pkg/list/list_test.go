package list

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(l *List[int]) []int {
	var out []int
	l.Map(func(link *Link[int]) { out = append(out, link.GetValue()) })
	return out
}

func TestPushAndPop(t *testing.T) {
	l := New[int]()
	a := l.PushTail(1)
	b := l.PushTail(2)
	c := l.PushTail(3)
	l.PushHead(0)
	require.Equal(t, []int{0, 1, 2, 3}, values(l))
	require.Equal(t, 4, l.Len())

	b.PopSelf()
	assert.Equal(t, []int{0, 1, 3}, values(l))
	assert.Nil(t, b.GetList())

	c.PopSelf()
	assert.Equal(t, a, l.PeekTail())

	l.PeekHead().PopSelf()
	a.PopSelf()
	assert.Nil(t, l.PeekHead())
	assert.Nil(t, l.PeekTail())
	assert.Equal(t, 0, l.Len())

	// Already detached.
	a.PopSelf()
	assert.Equal(t, 0, l.Len())
}

func TestFind(t *testing.T) {
	l := New[int]()
	for i := range 5 {
		l.PushTail(i * 10)
	}
	found := l.Find(func(link *Link[int]) bool { return link.GetValue() == 30 })
	require.NotNil(t, found)
	assert.Equal(t, 20, found.GetPrev().GetValue())
	assert.Equal(t, 40, found.GetNext().GetValue())
	assert.Nil(t, l.Find(func(link *Link[int]) bool { return link.GetValue() == 7 }))
}
