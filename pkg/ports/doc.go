/*
Package ports defines the driven ports (interfaces) arbor depends on.

These interfaces decouple the builder, resolver and network client from the
host toolkit and from storage backends.

# Key Interfaces

  - NodeRegistry / FunctionRegistry: type-name and function-name lookups.
  - Host: the application root, its auth header and the full-screen overlay.
  - SessionStore: persistence of per-host session records (memory, Redis, bbolt).
  - DistributedLocker: cross-replica locking of a host's session record.
  - DescriptionLoader: named description libraries (e.g. loam directories).
*/
package ports
