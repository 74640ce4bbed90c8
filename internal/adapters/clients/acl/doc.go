// Package acl is the translation boundary between a remote Synaptik API and
// the domain model.
//
// [TaskClient] sends requests through the instrumented [clients.Client] and
// converts every response into domain types. The JSON it exchanges is
// described by unexported wire structs that never leave this package, so a
// change to the API's serialization is absorbed here.
//
// # Error Handling
//
// Failures come back as domain errors. The error envelope's code decides
// first; when it is missing or unknown the HTTP status does:
//   - NOT_FOUND / 404 → [domain.ErrNotFound]
//   - CONFLICT / 409, 412 → [domain.ErrConflict]
//   - VALIDATION_ERROR, BAD_REQUEST, PAYLOAD_TOO_LARGE / 400, 413, 422 → [domain.ErrValidation]
//   - FORBIDDEN, UNAUTHORIZED / 401, 403 → [domain.ErrForbidden]
//   - SERVICE_UNAVAILABLE, TIMEOUT, INTERNAL_ERROR / 429, 5xx → [domain.ErrUnavailable]
//
// Client-level errors ([clients.ErrCircuitOpen], [clients.ErrMaxRetriesExceeded])
// also become [domain.ErrUnavailable].
package acl
