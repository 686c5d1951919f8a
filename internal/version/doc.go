// Package version exposes build metadata for the packager.
//
// Version, Commit and BuildTime are injected through Go ldflags. The values
// show up in the `version` subcommand and in the publish user agent.
package version
