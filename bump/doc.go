// Package bump rewrites pinned dependency versions in a checked-out working
// tree. It scans a configurable set of file patterns for "name==version"
// requirement pins and pre-commit "rev:" hook pins, asks the version index for
// the latest known release of each, and bumps strictly-older pins in place.
//
// The transform has no side effects beyond file mutation: committing and
// pushing are the runner's job. Transform is safe to invoke concurrently
// across distinct working trees.
package bump
