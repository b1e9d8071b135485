package config

import "github.com/bwmarrin/snowflake"

// NewSnowflakeNode returns the ID generator for this instance.
func NewSnowflakeNode(cfg Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
