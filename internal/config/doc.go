// Package config defines the bundle build settings and provides helpers to
// load, validate and save them in YAML format.
//
// Validate fills defaults (working directory, descriptor name, spec version,
// signing algorithms) and rejects unsupported feature combinations such as
// an empty codebase without the JNLP servlet.
package config
