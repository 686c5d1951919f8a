// Package archiver zips a working directory into the bundle archive.
//
// Entries are written in lexical path order with the modification times of
// the files on disk, so archiving an unchanged directory twice produces
// identical bytes.
package archiver
