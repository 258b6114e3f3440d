// Package http exposes the session scheduler over a JSON API.
//
// Every /api route requires an `X-API-Key` header; /healthz does not.
//   - POST /api/rules/validate, /api/rules/preview, /api/rules/ics: check,
//     preview or export a recurrence rule without storing it. Range bounds
//     accept YYYY-MM-DD (read in the configured time zone) or RFC 3339.
//   - POST /api/series, GET/PUT/DELETE /api/series/{id}: series expanded
//     into stored sessions. PUT regenerates every session of the series.
//   - GET/POST /api/sessions, POST /api/sessions/bulk-update,
//     GET/PUT/DELETE /api/sessions/{id}: individual sessions. Writes are
//     rejected with 409 SCHEDULE_CONFLICT unless `allow_overlap` is set, in
//     which case conflicts come back as `warnings`.
//   - POST /api/conflicts/check: dry-run conflict check.
//   - GET/POST /api/rooms, GET/PUT/DELETE /api/rooms/{id}: room catalog.
//     Deleting a room still referenced by sessions yields 409 RESOURCE_IN_USE.
//   - GET /api/rooms/{id}/sessions: sessions booked in a room, optionally
//     bounded by from and to.
//
// Errors share the `errorResponse` payload defined in responder.go.
package http
