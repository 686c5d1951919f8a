// Package descriptor renders the JNLP deployment descriptor.
package descriptor
