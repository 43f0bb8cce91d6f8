// Package snowflake hands out time-sortable 64-bit IDs for engine events.
// Each process runs one Generator per node id (0-1023).
package snowflake

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator wraps a bwmarrin snowflake node. Safe for concurrent use.
type Generator struct {
	node *snowflake.Node
}

// NewGenerator creates a generator for nodeID.
func NewGenerator(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// Next returns a new ID.
func (g *Generator) Next() int64 {
	return g.node.Generate().Int64()
}

// NextString returns a new ID in base 10.
func (g *Generator) NextString() string {
	return g.node.Generate().String()
}

// Time returns the creation time of id in unix milliseconds.
func Time(id int64) int64 {
	return snowflake.ParseInt64(id).Time()
}
