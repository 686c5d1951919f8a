// Package packer implements the jar pack/unpack cycle.
//
// Packing normalizes a jar (canonical entry order, fixed timestamps, stored
// entries) and compresses it with zstd into <jar>.pack, or with gzip into
// <jar>.pack.gz. Unpacking reverses the compression and writes the
// normalized jar back over the original, so a pack/unpack round trip yields a
// canonical jar that packs reproducibly after signing.
package packer
