// Package internal holds build information shared by the binaries.
package internal

// Version is the build version, set at build time with -ldflags
var Version = "dev"
