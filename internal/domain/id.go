package domain

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator hands out review ids.
type IDGenerator interface {
	NewID() int64
}

// SnowflakeGenerator produces time-ordered ids that stay unique across
// instances as long as every instance uses its own node id.
type SnowflakeGenerator struct {
	node *snowflake.Node
}

// NewSnowflakeGenerator creates a generator for node (0-1023).
func NewSnowflakeGenerator(node int64) (*SnowflakeGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", node, err)
	}
	return &SnowflakeGenerator{node: n}, nil
}

// NewID returns the next id.
func (g *SnowflakeGenerator) NewID() int64 {
	return g.node.Generate().Int64()
}
