// Package bloom 是一个并发安全的布隆过滤器，用于在生成邀请码时先排除已占用的码，
// 只有"可能存在"时才查询数据库。
package bloom

import (
	"math"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/twmb/murmur3"
)

type Filter struct {
	mu   sync.RWMutex
	bits *bitset.BitSet
	m    uint
	k    uint
}

// New sizes the filter for n items at false-positive rate p.
func New(n uint, p float64) *Filter {
	if n == 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}
	m := uint(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	k := uint(math.Max(1, math.Round(float64(m)/float64(n)*math.Ln2)))
	return &Filter{bits: bitset.New(m), m: m, k: k}
}

// 双重哈希：h1 + i*h2，取 murmur3 128 位结果的两半
func (f *Filter) locations(key string) []uint {
	h1, h2 := murmur3.StringSum128(key)
	locs := make([]uint, f.k)
	for i := uint(0); i < f.k; i++ {
		locs[i] = uint((h1 + uint64(i)*h2) % uint64(f.m))
	}
	return locs
}

func (f *Filter) Add(key string) {
	locs := f.locations(key)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range locs {
		f.bits.Set(l)
	}
}

// MayContain 返回 false 时一定不存在
func (f *Filter) MayContain(key string) bool {
	locs := f.locations(key)
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, l := range locs {
		if !f.bits.Test(l) {
			return false
		}
	}
	return true
}

// Cap returns the number of bits and hash functions.
func (f *Filter) Cap() (m, k uint) {
	return f.m, f.k
}
