/*
Package domain contains the core models of the diagnosis engine.

It defines the tag tree a session grows while rules fire, the outputs rules
produce, session lifecycle states and the hooks used to observe them. The
package has no I/O and no knowledge of storage or transport.

# Key Entities

  - Tag: a typed value in the derivation tree, parent kept as an arena index.
  - RuleInput: the root tag of a candidate plus its unwrapped ancestors.
  - RuleOutput: what one rule execution produced (tags or condition failures).
  - SessionVariables: read-only configuration visible to rules.
*/
package domain
