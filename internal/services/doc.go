// Package services contains the platform clients the conversion core consumes.
//
// Each platform implements [Service], the narrow interface the matching engine
// and orchestrator depend on: search, playlist reads, playlist creation, and
// track addition. Platform quirks stay inside the clients:
//
//   - Spotify expects track URIs ("spotify:track:<id>") when adding tracks and
//     signals an expired token with HTTP 401.
//   - NetEase signals an expired cookie with application code 301 and reports
//     an already-present track with code 502, which [NeteaseService.AddTracks]
//     normalizes to success.
//
// Both clients rate-limit themselves with golang.org/x/time/rate and retry
// transient failures with exponential backoff. Session expiry is surfaced as
// [shared.ErrSessionExpired] so callers can clear the stored credential.
package services
