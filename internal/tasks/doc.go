// Package tasks implements the mirror engine.
//
// # Sync
//
// [Reconciler.Run] moves through these steps:
//
//  1. Pick an identity from the quota ledger; abort with [shared.ErrNoAvailableIdentity] if none is usable
//  2. Fetch the full source playlist and optionally ask for confirmation
//  3. Connect to the target, find or create the playlist "<title> - by <owner>"
//  4. Load the mirror and [Diff] it against the source
//  5. Remove loop: delete each obsolete item, then drop its record
//  6. Add loop: resolve, insert at the top of the playlist, then append the record
//
// Every store call directly follows the remote mutation it records. A run stopped at any point leaves
// the mirror describing what is actually on the target, and the next run recomputes the diff from it.
//
// Two situations from an interrupted run are repaired on the next one:
//   - a delete that reached the target but not the store: the repeated delete reports
//     [shared.ErrItemNotFound] and the record is dropped
//   - an insert that reached the target but not the store: with orphan adoption enabled the
//     unclaimed item is recorded instead of inserting the video again
//
// # Quota
//
// A [shared.ErrQuotaExhausted] from any remote call marks the identity exhausted and ends the run in
// the quota-halted state. That is not an error; the counters tell how far the run got.
//
// # Resolution
//
// [Resolver] searches "<artist> - <title>", fetches view counts for the hits and picks the most viewed,
// ties going to the earlier hit. Missing statistics abort the run rather than skipping the track.
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on an optional channel. Sends block until received or until
// the context is done, so every "+ title" and "- title" line reaches the reader.
package tasks
