// Package finding defines findings, their suppression, arbitration between
// competing fixes, and the results and outcome of a run.
//
// # Arbitration
//
// Rules run independently and may propose conflicting edits. Arbitrate drops
// suppressed findings, orders the rest so that additions are applied before the
// removals they may anchor on, and removes duplicate adds and removes per module.
//
// # Suppression
//
// Suppressions come from the build descriptor: `@Suppress("unused-dependency")` or
// `//noinspection unusedDependency` above a statement or a whole block. Both the
// kebab-case rule id and its camelCase alias are accepted.
package finding
