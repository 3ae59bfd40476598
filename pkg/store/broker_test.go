package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker(t *testing.T) {
	b := NewBroker()
	a, cancelA := b.Subscribe()
	c, cancelC := b.Subscribe()
	defer cancelC()

	b.Publish("p-1")
	assert.Equal(t, "p-1", <-a)
	assert.Equal(t, "p-1", <-c)

	cancelA()
	cancelA()
	_, open := <-a
	require.False(t, open)

	b.Publish("p-2")
	assert.Equal(t, "p-2", <-c)
}

func TestBrokerDropsWhenFull(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < 100; i++ {
		b.Publish("p")
	}
	assert.Len(t, ch, cap(ch))
}
