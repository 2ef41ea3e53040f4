// Package identity maps committer identities from a build's change log to
// notification addresses.
package identity
