package app

// Version is the semantic version of mistmcp, set at build time via -ldflags.
var Version = "dev"
