/*
Package condition implements the condition registry and the and/or/not
combinator expressions evaluated against it.

Expressions are parsed once, when a tree is built, and evaluated every tick:

	expr := condition.MustParse("and(has_target, not(low_health))")
	ok, err := registry.Evaluate(expr, scope)
*/
package condition
