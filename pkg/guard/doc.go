/*
Package guard serializes access to state machine instances.

It holds one reference-counted mutex per entity, optionally backed by a
distributed lock, so that the resolve, apply and commit steps of one tick
never interleave with another operation on the same entity while distinct
entities proceed in parallel.
*/
package guard
