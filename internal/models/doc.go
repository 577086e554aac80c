// Package models defines domain entities and persistence interfaces for the crossfade playlist conversion service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight values representing external platform data
//   - [Track] : Platform-agnostic song metadata populated by each platform client
//   - [PlaylistInfo] : Basic playlist metadata used when creating jobs
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [ConversionJob] : A playlist conversion request with its state machine and counters
//   - [TrackMatch] : The per-track matching result belonging to exactly one job
//
// All persistent entities implement the Model interface providing ID generation, timestamps, and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
