// Package jarfile reads and writes jar archives for the packer and signer.
//
// Jars are plain zip containers; the package goes through
// klauspost/compress/zip and replaces files in place with go-update so a
// failed write never leaves a truncated jar in the working directory.
package jarfile
