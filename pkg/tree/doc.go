// Package tree builds the immutable state forest resolved by the engine.
package tree
