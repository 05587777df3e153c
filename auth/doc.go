// Package auth provides the credential and authentication primitives used to
// gate access to the XBRL US data API.
//
// It defines the four-field Credentials set, a one-way Fingerprint used to
// detect credential rotation, the Authenticator contract that exchanges
// credentials for an authenticated Handle, and the per-request context slot
// through which tool handlers receive that Handle. The package is
// protocol-agnostic; the MCP binding lives in package gate.
package auth
