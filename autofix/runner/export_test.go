package runner

// Exported aliases for testing internal functions from
// the runner_test package.

// BranchNameForTest exposes branchName.
var BranchNameForTest = branchName

// SamePinsForTest exposes samePins.
var SamePinsForTest = samePins
