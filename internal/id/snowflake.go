// Package id generates time-ordered unique identifiers.
package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
	err  error
)

// Init initializes the Snowflake node with the given node ID. Only the first
// call has an effect.
func Init(nodeID int64) error {
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a new globally unique int64 ID. The node is initialized with
// ID 0 if Init was never called.
func New() int64 {
	_ = Init(0)
	return node.Generate().Int64()
}
