package snowflake

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestNewGenerator(t *testing.T) {
	tests := []struct {
		name    string
		nodeID  int64
		wantErr error
	}{
		{"zero", 0, nil},
		{"max", MaxNodeID, nil},
		{"negative", -1, ErrInvalidNodeID},
		{"too large", MaxNodeID + 1, ErrInvalidNodeID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(tt.nodeID)
			if err != tt.wantErr {
				t.Errorf("NewGenerator(%d) error = %v, want %v", tt.nodeID, err, tt.wantErr)
			}
		})
	}
}

func TestNextID_Parse(t *testing.T) {
	gen, err := NewGenerator(7)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	before := time.Now().Add(-time.Millisecond)
	id, err := gen.NextID()
	if err != nil {
		t.Fatalf("failed to generate ID: %v", err)
	}
	at, node, _ := Parse(id)
	if node != 7 {
		t.Errorf("node = %d, want 7", node)
	}
	if at.Before(before) || at.After(time.Now().Add(time.Millisecond)) {
		t.Errorf("timestamp %v outside generation window", at)
	}
}

func TestNextID_SameMillisecond(t *testing.T) {
	gen, _ := NewGenerator(1)
	ms := Epoch + 1000
	gen.now = func() int64 { return ms }

	a, _ := gen.NextID()
	b, _ := gen.NextID()
	_, _, seqA := Parse(a)
	_, _, seqB := Parse(b)
	if seqA != 0 || seqB != 1 {
		t.Errorf("sequences = %d, %d; want 0, 1", seqA, seqB)
	}
}

func TestSequenceOverflowWaitsForNextMillisecond(t *testing.T) {
	gen, _ := NewGenerator(1)
	ms := Epoch + 5000
	calls := 0
	gen.now = func() int64 {
		calls++
		// 序列用尽后才推进时钟
		if calls > sequenceMask+2 {
			return ms + 1
		}
		return ms
	}

	var last int64
	for i := 0; i <= sequenceMask+1; i++ {
		id, err := gen.NextID()
		if err != nil {
			t.Fatalf("NextID: %v", err)
		}
		if id <= last {
			t.Fatalf("id %d not greater than %d", id, last)
		}
		last = id
	}
	at, _, seq := Parse(last)
	if at.UnixMilli() != ms+1 || seq != 0 {
		t.Errorf("after overflow got time %d seq %d", at.UnixMilli(), seq)
	}
}

func TestClockMovedBackwards(t *testing.T) {
	gen, _ := NewGenerator(1)
	ms := Epoch + 10_000
	gen.now = func() int64 { return ms }
	if _, err := gen.NextID(); err != nil {
		t.Fatalf("NextID: %v", err)
	}

	ms -= 10
	if _, err := gen.NextID(); err != ErrClockMovedBackwards {
		t.Errorf("expected ErrClockMovedBackwards, got %v", err)
	}
}

func TestNextString(t *testing.T) {
	gen, _ := NewGenerator(3)
	s, err := gen.NextString()
	if err != nil {
		t.Fatalf("NextString: %v", err)
	}
	id, err := strconv.ParseInt(s, 36, 64)
	if err != nil {
		t.Fatalf("not base36: %q", s)
	}
	if _, node, _ := Parse(id); node != 3 {
		t.Errorf("node = %d, want 3", node)
	}
}

func TestNextID_ThreadSafety(t *testing.T) {
	gen, _ := NewGenerator(1)

	const goroutines, perG = 20, 500
	ids := make(chan int64, goroutines*perG)
	var wg sync.WaitGroup
	for range goroutines {
		wg.Go(func() {
			for range perG {
				id, err := gen.NextID()
				if err != nil {
					t.Errorf("NextID: %v", err)
					return
				}
				ids <- id
			}
		})
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, goroutines*perG)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
}

func BenchmarkNextID(b *testing.B) {
	gen, _ := NewGenerator(1)
	b.ResetTimer()
	for range b.N {
		_, _ = gen.NextID()
	}
}
