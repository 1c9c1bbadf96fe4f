/*
Package source is the source-code front end: it turns the files of a module's
source set into a project.Analysis.

Java and Kotlin files are parsed with tree-sitter. For each file the analyzer
records the package, top-level and nested type declarations (and Kotlin
top-level functions and properties) with their visibility, and every name the
file refers to. Names are resolved against explicit imports; names that cannot
be resolved are recorded as inferred references in the file's own package and in
each wildcard-imported package. Types in public signatures are marked as API
references.

Anvil annotations are read as dependency-injection scopes: ContributesTo,
ContributesBinding, ContributesMultibinding and ContributesSubcomponent record a
contribution; MergeComponent, MergeSubcomponent, MergeModules and
MergeInterfaces record a merge.

Android resource directories produce R.<type>.<name> declarations and
references, and layout names for generated view binding classes.

Files are parsed concurrently and results are cached by content in a
storage.Store, so unchanged files are parsed once.
*/
package source
