/*
Package domain contains the core models shared by every arbor component.

It defines the declarative description format, the node contracts a host
toolkit must satisfy, the bind/action vocabulary and the error taxonomy.
This package is kept free of I/O so adapters and the runtime can depend on it
without cycles.

# Key Entities

  - Description: a decoded JSON/YAML node description ("type", "options", "children", "binds").
  - Node: the contract of a constructible UI element (attributes, children, events).
  - BindSpec: a declarative association between a node event and an action.
  - SessionRecord: the cached per-host session token of the network client.
*/
package domain
