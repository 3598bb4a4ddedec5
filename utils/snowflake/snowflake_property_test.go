package snowflake

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_SnowflakeIDUniqueness(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("all generated IDs are unique and increasing", prop.ForAll(
		func(nodeID int64, count int) bool {
			g, err := NewGenerator(nodeID)
			if err != nil {
				return false
			}

			ids := make(map[int64]bool)
			var last int64
			for range count {
				id, err := g.NextID()
				if err != nil || ids[id] || id <= last {
					return false
				}
				ids[id] = true
				last = id
			}
			return len(ids) == count
		},
		gen.Int64Range(0, MaxNodeID),
		gen.IntRange(100, 1000),
	))

	properties.Property("parse recovers the node", prop.ForAll(
		func(nodeID int64) bool {
			g, err := NewGenerator(nodeID)
			if err != nil {
				return false
			}
			id, err := g.NextID()
			if err != nil {
				return false
			}
			_, node, _ := Parse(id)
			return node == nodeID
		},
		gen.Int64Range(0, MaxNodeID),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
