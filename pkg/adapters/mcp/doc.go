// Package mcp exposes an arbor engine to AI agents over the Model Context
// Protocol: tools to inspect and control instances and resources describing
// the state tree.
package mcp
