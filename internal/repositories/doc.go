// Package repositories implements SQLite persistence for the mirror engine.
//
// Every mutating call commits before it returns. The engine relies on this: each remote playlist mutation
// is followed by exactly one repository call, so an interrupted run leaves the database describing what
// was actually applied.
//
// Key Implementations:
//   - [MirrorRepository] : ordered track records per (source account, source playlist, target account)
//   - [QuotaRepository] : the rotating pool of credential identities and their exhaustion times
//   - [RunRepository] : history of sync invocations
package repositories
