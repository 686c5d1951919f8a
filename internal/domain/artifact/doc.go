// Package artifact contains the domain types shared by the resolver and the
// bundling pipeline.
//
// Resolved describes one artifact handed over by the dependency resolver,
// Spec is a versionless coordinate taken from configuration, and Staged is a
// file sitting in the working directory.
package artifact
