// Package types defines the recording entities, the Store interface, and
// the standard errors shared by the plutarch storage backends.
package types
