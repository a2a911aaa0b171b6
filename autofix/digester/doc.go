// Package digester calculates SHA256 file digests and compares digest
// snapshots of a working tree, letting the runner detect which scanned files a
// transform actually changed before committing.
package digester
