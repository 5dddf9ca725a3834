package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/ytmirror/internal/models"
)

var _ list.Item = trackItem{}

// trackItem wraps [models.SourceTrack] to implement [list.Item].
type trackItem struct {
	track models.SourceTrack
}

func (i trackItem) FilterValue() string { return i.track.Title }
func (i trackItem) Title() string       { return i.track.Title }
func (i trackItem) Description() string {
	if i.track.AddedAt.IsZero() {
		return i.track.Artist
	}
	return fmt.Sprintf("%s • added %s", i.track.Artist, i.track.AddedAt.Format("2006-01-02"))
}

func newTrackList(src *models.SourcePlaylist, width, height int) list.Model {
	items := make([]list.Item, len(src.Tracks))
	for i, t := range src.Tracks {
		items[i] = trackItem{track: t}
	}

	l := list.New(items, list.NewDefaultDelegate(), width, height)
	l.Title = fmt.Sprintf("%s by %s (%d tracks)", src.Title, src.OwnerName, len(src.Tracks))
	l.SetShowHelp(false)
	return l
}
