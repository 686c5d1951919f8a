// Package keytool manages the signing keystore.
//
// A keystore is a YAML document of aliased Ed25519 keys. Each private key is
// encrypted with its key password and the whole document with the store
// password, both through age scrypt recipients in armored form.
package keytool
