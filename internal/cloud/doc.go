// Package cloud talks to the telematics cloud: cookie-session
// authentication, device enumeration, the cursor-based change feed and
// command relay.
//
// Failures collapse into two families, ErrAuthFailed and ErrTransport, so
// callers only ever decide between "log in again" and "try again later".
// Session cookies can be exported and cached through SessionStore, letting
// a restart resume a login instead of creating a new one.
package cloud
