// Package models defines the domain entities shared by the mirror engine, its persistence layer and the remote services.
//
// The package contains three categories of types:
//
// 1. Mirror state: what has actually been applied to a target playlist
//   - [TrackRecord] : one mirrored entry, keyed by its source id, with resolution fields once applied
//   - [MirrorKey] : the (source account, source playlist, target account) triple a mirror belongs to
//   - [Mirror] : the persisted mirror header with display names and the target playlist id
//
// 2. Remote DTOs: lightweight structs returned by the source and target services
//   - [SourcePlaylist], [SourceTrack] : the playlist being mirrored
//   - [TargetPlaylist], [PlaylistItem], [Candidate], [Account] : the video platform side
//
// 3. Bookkeeping: quota identities and sync run history
//   - [Identity] : one credential identity with its last exhaustion time
//   - [SyncRun] : outcome of a single sync invocation
package models
