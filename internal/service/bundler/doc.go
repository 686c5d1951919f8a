// Package bundler assembles the application bundle.
//
// A run selects the configured artifacts, stages them into the persistent
// working directory, packs and signs only the jars written during this run,
// renders the JNLP descriptor and zips the directory. File modification
// times relative to the run epoch are the only incremental cache: a staged
// file is reprocessed if and only if the copier wrote it in this run.
//
// Stages share a RunContext instead of package state, and every external
// tool (resolver, packer, signer, keytool, descriptor, archiver, publisher)
// is an interface so the ordering and invariants can be exercised with fakes.
package bundler
