/*
Package dsl provides a fluent Go builder for declaring state trees.

It is an alternative to loading declarations from YAML, JSON or a loam
repository, and is convenient for tests and for trees generated at runtime.

Example usage:

	t, err := dsl.New().
		State("alive").
		State("idle").Parent("alive").Priority(1).Exit("sees_enemy").
		State("chase").Parent("alive").Enter("sees_enemy").Exit("not(sees_enemy)").
		State("flee").Parent("alive").Priority(5).Enter("low_health").Continue().
		Build()
*/
package dsl
