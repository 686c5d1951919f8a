// Package jarsigner signs jars in place with an Ed25519 key from the keystore.
//
// Signing writes a manifest with one digest per entry, a signature file
// (<SIGFILE>.SF) holding the digest of that manifest, and a signature block
// (<SIGFILE>.ED25519) carrying the public key and the signature over the
// signature file.
package jarsigner
