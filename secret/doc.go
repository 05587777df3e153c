// Package secret resolves configuration values that reference secrets.
//
// Values are first expanded strictly: ${VAR} must be set in the
// environment, $$ emits a literal dollar. A value that is then a whole
// reference of the form
//
//	secretref:<provider>:<ref>
//
// is replaced by what the provider returns. Two providers are built in:
// "env" reads an environment variable and "file" reads a file, trimming
// one trailing newline (the usual shape of mounted secrets).
package secret
