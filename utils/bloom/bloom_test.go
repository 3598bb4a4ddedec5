package bloom

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestFilter(t *testing.T) {
	f := New(1000, 0.01)

	t.Run("sizing", func(t *testing.T) {
		m, k := f.Cap()
		assert.Greater(t, m, uint(9000))
		assert.Equal(t, uint(7), k)
	})

	t.Run("added keys are reported", func(t *testing.T) {
		f.Add("deadbeef")
		assert.True(t, f.MayContain("deadbeef"))
	})

	t.Run("false positive rate stays low", func(t *testing.T) {
		g := New(1000, 0.01)
		for i := 0; i < 1000; i++ {
			g.Add(fmt.Sprintf("code-%d", i))
		}
		fp := 0
		for i := 0; i < 10000; i++ {
			if g.MayContain(fmt.Sprintf("other-%d", i)) {
				fp++
			}
		}
		assert.Less(t, fp, 300)
	})

	t.Run("bad parameters fall back", func(t *testing.T) {
		g := New(0, 2)
		g.Add("x")
		assert.True(t, g.MayContain("x"))
	})
}

func TestFilterConcurrent(t *testing.T) {
	f := New(10000, 0.01)
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Go(func() {
			for i := range 500 {
				key := fmt.Sprintf("%d-%d", w, i)
				f.Add(key)
				if !f.MayContain(key) {
					t.Errorf("missing %s", key)
				}
			}
		})
	}
	wg.Wait()
}

func TestProperty_NoFalseNegatives(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		keys := rapid.SliceOfN(rapid.StringMatching(`[0-9a-f]{8}`), 1, 200).Draw(rt, "keys")
		f := New(uint(len(keys)), 0.05)
		for _, k := range keys {
			f.Add(k)
		}
		for _, k := range keys {
			if !f.MayContain(k) {
				rt.Fatalf("false negative for %q", k)
			}
		}
	})
}
