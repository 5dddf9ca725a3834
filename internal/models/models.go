package models

import (
	"fmt"
	"strings"
	"time"
)

// TrackRecord is one entry of a mirror.
//
// SourceID is the only identity: title and artist may change upstream without changing it.
type TrackRecord struct {
	SourceID string
	Title    string
	Artist   string
	AddedAt  time.Time

	ResolvedTitle  string // Title of the video as reported by the target when the item was inserted
	ResolvedItemID string // Playlist item id on the target, used for deletion
	VideoID        string // Video the item points at
}

// Resolved reports whether the record carries resolution fields.
func (r TrackRecord) Resolved() bool {
	return r.ResolvedItemID != ""
}

// Label returns the text used in progress output for this record.
func (r TrackRecord) Label() string {
	if r.ResolvedTitle != "" {
		return r.ResolvedTitle
	}
	return fmt.Sprintf("%s - %s", r.Artist, r.Title)
}

// MirrorKey identifies one mirror: a source playlist owned by a source account, mirrored into a target account.
type MirrorKey struct {
	SourceAccount  string
	SourcePlaylist string
	TargetAccount  string
}

func (k MirrorKey) String() string {
	return strings.Join([]string{k.SourceAccount, k.SourcePlaylist, k.TargetAccount}, "/")
}

// Validate checks that every component of the key is set.
func (k MirrorKey) Validate() error {
	if k.SourceAccount == "" || k.SourcePlaylist == "" || k.TargetAccount == "" {
		return fmt.Errorf("incomplete mirror key %q", k.String())
	}
	return nil
}

// Mirror is the persisted header of a mirror.
type Mirror struct {
	ID               string
	Key              MirrorKey
	SourceTitle      string
	SourceOwner      string
	TargetOwner      string
	TargetPlaylistID string
	TrackCount       int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MirrorMeta holds display metadata recorded alongside a mirror.
type MirrorMeta struct {
	SourceTitle string
	SourceOwner string
	TargetOwner string
}

// SourceTrack is a playlist entry as fetched from the source service.
type SourceTrack struct {
	SourceID string
	Title    string
	Artist   string
	AddedAt  time.Time
}

// Record converts the source track into an unresolved [TrackRecord].
func (t SourceTrack) Record() TrackRecord {
	return TrackRecord{SourceID: t.SourceID, Title: t.Title, Artist: t.Artist, AddedAt: t.AddedAt}
}

// SourcePlaylist is a fully fetched source playlist (all pages).
type SourcePlaylist struct {
	ID        string
	Title     string
	OwnerID   string
	OwnerName string
	Tracks    []SourceTrack
}

// TargetTitle returns the deterministic name of the target playlist mirroring this source.
func (p SourcePlaylist) TargetTitle() string {
	return fmt.Sprintf("%s - by %s", p.Title, p.OwnerName)
}

// Account is the authenticated account on the target platform.
type Account struct {
	ID   string
	Name string
}

// TargetPlaylist is a playlist owned by the target account.
type TargetPlaylist struct {
	ID    string
	Title string
	Owner string
}

// PlaylistItem is an item of a target playlist.
type PlaylistItem struct {
	ID      string // Playlist item id
	VideoID string
	Title   string
}

// Candidate is a search hit considered by the resolver; never persisted.
type Candidate struct {
	VideoID   string
	ViewCount uint64
}

// Identity is one credential identity of the target platform, each with its own daily quota.
type Identity struct {
	Position         int
	Name             string
	ClientSecretPath string
	TokenPath        string
	ExhaustedAt      *time.Time
}

// AvailableAt returns the time from which the identity's quota is presumed replenished.
func (i Identity) AvailableAt(window time.Duration) time.Time {
	if i.ExhaustedAt == nil {
		return time.Time{}
	}
	return i.ExhaustedAt.Add(window)
}

// Available reports whether the identity can be used at now.
func (i Identity) Available(now time.Time, window time.Duration) bool {
	return !now.Before(i.AvailableAt(window))
}

// RunState is the terminal state of a sync run.
type RunState string

const (
	RunRunning     RunState = "running"
	RunDone        RunState = "done"
	RunQuotaHalted RunState = "quota_halted"
	RunCancelled   RunState = "cancelled"
	RunFailed      RunState = "failed"
)

// SyncRun records the outcome of one sync invocation.
type SyncRun struct {
	ID         string
	Mirror     string // Mirror key, see [MirrorKey.String]
	Identity   string
	State      RunState
	Added      int
	Removed    int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}
