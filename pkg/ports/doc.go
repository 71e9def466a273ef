/*
Package ports defines the driven ports (interfaces) for the Arbor engine.

These interfaces decouple the resolution core from external implementations,
allowing instances to live in memory or in Redis and trees to be declared in
Go, YAML/JSON files or a Loam repository.

# Key Interfaces

  - TreeLoader: Produces the state declarations a tree is built from.
  - InstanceStore: Persists and loads per-entity state machine instances.
  - DistributedLocker: Provides distributed locking for concurrent access to one entity.
*/
package ports
