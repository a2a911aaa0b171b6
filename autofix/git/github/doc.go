// Package github creates pull requests and queries pull request state on
// GitHub using the go-github client. Provider implements git.GitProvider for
// a single repository; Client exposes the cross-repository read operations
// used by the maintain helper.
package github
