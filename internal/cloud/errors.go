package cloud

import "errors"

var (
	// ErrAuthFailed indicates the cloud rejected the credentials or the
	// session cookie is no longer valid.
	ErrAuthFailed = errors.New("cloud: authentication failed")

	// ErrTransport covers everything else that keeps a request from
	// producing a usable response: network failures, unexpected HTTP
	// statuses, malformed bodies and application-level error codes.
	// Callers branch on auth-vs-transport, never on the particulars.
	ErrTransport = errors.New("cloud: transport failure")

	// ErrNoSession indicates no cached session exists for the account.
	ErrNoSession = errors.New("cloud: no cached session")
)
