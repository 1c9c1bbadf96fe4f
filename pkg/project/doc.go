// Package project is the in-memory model of a multi-module workspace.
//
// A Workspace holds Modules keyed by path. Each Module has source sets with an
// upstream relation (test inherits main), dependency slots derived from them, the
// set of dependencies currently declared in its build descriptor, and a memoized
// per-source-set Analysis produced by the source front end. Analyses are cached in
// memo cells so that the scheduler can clear them the moment no pending module
// needs them.
//
// Only the fix applicator mutates a module's DependencySet, and only while holding
// the module's descriptor lock.
package project
