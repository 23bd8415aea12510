package version

// Version is the volume-backup release version. Overridden at build time via
// -ldflags "-X volume-backup/src/version.Version=...".
var Version = "0.3.0-dev"
