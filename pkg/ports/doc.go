/*
Package ports defines the driven ports (interfaces) of the diagnosis engine.

These interfaces decouple session processing from the concrete storage of
rule outputs and from the persistence of final results.

# Key Interfaces

  - OutputStorage: per-session, append-only store of rule outputs and their tag tree.
  - ResultStore: persistence of final diagnosis results (memory, Redis, file).
  - DistributedLocker: exclusive access to a record across processes.
*/
package ports
