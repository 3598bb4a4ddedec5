// Package snowflake 生成按时间递增的 63 位 ID，用作对象存储中的文件名。
// 布局：41 位毫秒时间戳 | 10 位节点 | 12 位序列。
package snowflake

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

const (
	// Epoch is 2024-01-01 00:00:00 UTC in milliseconds.
	Epoch int64 = 1704067200000

	nodeBits     = 10
	sequenceBits = 12

	MaxNodeID    = -1 ^ (-1 << nodeBits)
	sequenceMask = -1 ^ (-1 << sequenceBits)
	nodeShift    = sequenceBits
	timeShift    = sequenceBits + nodeBits
)

var (
	ErrInvalidNodeID       = errors.New("node ID out of range")
	ErrClockMovedBackwards = errors.New("clock moved backwards")
)

type Generator struct {
	mu sync.Mutex

	nodeID        int64
	sequence      int64
	lastTimestamp int64
	now           func() int64
}

// NewGenerator 节点号来自 server.node_id，多实例部署时必须互不相同
func NewGenerator(nodeID int64) (*Generator, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, ErrInvalidNodeID
	}
	return &Generator{
		nodeID: nodeID,
		now:    func() int64 { return time.Now().UnixMilli() },
	}, nil
}

func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now()
	if ts < g.lastTimestamp {
		return 0, ErrClockMovedBackwards
	}

	if ts == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & sequenceMask
		// 同一毫秒内序列用尽，等待下一毫秒
		if g.sequence == 0 {
			for ts <= g.lastTimestamp {
				ts = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTimestamp = ts

	return (ts-Epoch)<<timeShift | g.nodeID<<nodeShift | g.sequence, nil
}

// NextString returns the next id in base 36, short enough for object names.
func (g *Generator) NextString() (string, error) {
	id, err := g.NextID()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 36), nil
}

// Parse splits an id into its creation time, node and sequence.
func Parse(id int64) (at time.Time, nodeID int64, sequence int64) {
	at = time.UnixMilli((id >> timeShift) + Epoch)
	nodeID = (id >> nodeShift) & MaxNodeID
	sequence = id & sequenceMask
	return
}
