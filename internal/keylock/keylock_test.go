package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockSerializesSameKey(t *testing.T) {
	req := require.New(t)
	l := New()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("room:ABCD")
			v := counter
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()
	req.Equal(50, counter)
	req.Zero(l.Len())
}

func TestLockIndependentKeys(t *testing.T) {
	req := require.New(t)
	l := New()
	unlockA := l.Lock("a")
	unlockB := l.Lock("b")
	req.Equal(2, l.Len())
	unlockA()
	unlockB()
	req.Zero(l.Len())
}
