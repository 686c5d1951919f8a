// Package resolver loads the resolved dependency set the pipeline selects from.
//
// The FileResolver reads the YAML manifest written by an external dependency
// resolver and exposes a Resolver interface that the bundler depends on.
package resolver
