// Package core defines the shared data model of the orchestration runtime:
// polymorphic content parts, conversation history items, per-run mutable
// state and usage accounting. Higher layers (runner, model adapters, tools)
// all communicate through these types.
package core
