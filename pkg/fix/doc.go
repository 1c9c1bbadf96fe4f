/*
Package fix applies arbitrated findings to build descriptors.

An Applicator turns one finding into a text edit of the owning module's
descriptor and then updates the module's in-memory dependency set, so findings
applied later in the same run see the new state. Writes to one module are
serialized through the module's write lock; different modules are edited
concurrently.

Edits

  - Add: the new declaration is inserted next to an anchor statement. The anchor
    is, in order of preference, a statement for the same target, the statement of
    the finding's source edge, the sorted position among statements of the same
    configuration, or the last statement of the last dependencies block. Without
    any dependencies block a new one is appended.
  - Remove: the statement is deleted together with its attached comments, or
    commented out and labelled with the rule id, depending on the Strategy.
  - Modify: an add anchored on the statement it replaces, then the remove, in
    one write.
  - Edit: plugin statements are removed like dependencies; feature flags are
    rewritten in place or added to android { buildFeatures { } }.
  - Sort: every block of the finding's kind is rewritten in sorted order.

A finding whose anchor statement can no longer be found is reported as not
fixed. Descriptor I/O errors are returned to the caller.
*/
package fix
