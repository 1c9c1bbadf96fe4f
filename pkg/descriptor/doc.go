// Package descriptor reads, parses and rewrites Gradle build descriptors.
//
// # Overview
//
// A descriptor is a `build.gradle.kts` or `build.gradle` file. Parse extracts the
// `dependencies` and `plugins` blocks, each statement with its exact text span,
// configuration name, target and suppression ids, plus generated-code feature flags
// such as `viewBinding`. File wraps a descriptor on disk and offers Update, Replace
// and Append; each write re-reads the file first so edits made by another writer
// are never silently overwritten.
//
// # Suppressions
//
// A finding is silenced for a single statement with an annotation or comment on the
// lines directly above it:
//
//	@Suppress("unused-dependency")
//	implementation(project(":core"))
//
//	//noinspection unused-dependency
//	implementation project(':core')
//
// The same markers above `dependencies {` apply to every statement in the block.
package descriptor
