package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node    *snowflake.Node
	initErr error
	once    sync.Once
)

// Init initializes the Snowflake node with the given node ID. The server and
// worker use different node IDs so their IDs never collide.
func Init(nodeID int64) error {
	once.Do(func() {
		node, initErr = snowflake.NewNode(nodeID)
	})
	return initErr
}

// New generates a new globally unique int64 ID using the Snowflake algorithm.
// IDs are time-ordered. Without a prior Init it falls back to node 0.
func New() int64 {
	if err := Init(0); err != nil || node == nil {
		panic("id: snowflake node not initialized")
	}
	return node.Generate().Int64()
}
