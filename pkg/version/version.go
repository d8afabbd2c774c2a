// Package version holds build version information.
package version

// Version is the vaultidx release version, overridable at build time
// with -ldflags "-X github.com/vaultidx/vaultidx/pkg/version.Version=...".
var Version = "0.3.0"
