package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	locks := newKeyedMutex()

	t.Run("serializes the same key", func(t *testing.T) {
		var wg sync.WaitGroup
		counter := 0
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := locks.Lock("conv-1")
				counter++
				unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 100, counter)
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		unlockA := locks.Lock("conv-a")
		unlockB := locks.Lock("conv-b")
		assert.Equal(t, 2, locks.size())
		unlockA()
		unlockB()
	})

	t.Run("released keys are forgotten", func(t *testing.T) {
		assert.Equal(t, 0, locks.size())
	})
}
