/*
Package domain contains the core domain models of the Arbor engine.

It defines the vocabulary shared by every other package: state and entity
identifiers, state declarations, transition strategies, lifecycle phases,
tick data, history records, resolution outcomes and the error taxonomy.
This package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - StateSpec: The declaration of one state in the hierarchy (before Build).
  - Strategy: How a transition bubbling up to an ancestor re-enters it.
  - Tick / Scope: The read-only data handed to predicates and hooks.
  - HistoryRecord: One committed transition of an instance.
  - Outcome: The resolved decision of one tick (Stay, TransitionTo, Terminate).
*/
package domain
