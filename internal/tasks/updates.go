package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytmirror/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data, a [models.TrackRecord] for Added and Removed
}

// Operation phase enumeration
type Phase int

const (
	PickIdentity Phase = iota
	FetchSource
	ResolveTarget
	LoadMirror
	Compare
	Removed
	Added
	Halted
	Done
)

func (p Phase) String() string {
	switch p {
	case PickIdentity:
		return "pick_identity"
	case FetchSource:
		return "fetch_source"
	case ResolveTarget:
		return "resolve_target"
	case LoadMirror:
		return "load_mirror"
	case Compare:
		return "compare"
	case Removed:
		return "removed"
	case Added:
		return "added"
	case Halted:
		return "halted"
	case Done:
		return "done"
	default:
		return ""
	}
}

// sendProgress blocks until update is received or ctx is done.
func sendProgress(ctx context.Context, progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	case <-ctx.Done():
	}
}

func pickedIdentityUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PickIdentity,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Using identity %s", name),
	}
}

func fetchingSourceUpdate(ref string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Fetching source playlist (%s)...", ref),
	}
}

func foundSourceUpdate(src *models.SourcePlaylist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s by %s (%d tracks)", src.Title, src.OwnerName, len(src.Tracks)),
		Data:    src,
	}
}

func targetPlaylistUpdate(title, id string, created bool) ProgressUpdate {
	verb := "Using"
	if created {
		verb = "Created"
	}
	return ProgressUpdate{
		Phase:   ResolveTarget,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%s target playlist: %s (ID: %s)", verb, title, id),
	}
}

func loadedMirrorUpdate(key models.MirrorKey, n int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadMirror,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Mirror %s holds %d tracks", key, n),
	}
}

func diffUpdate(toRemove, toAdd int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Compare,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%d to remove, %d to add", toRemove, toAdd),
	}
}

func removedUpdate(step, total int, rec models.TrackRecord) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Removed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("- %s", rec.Label()),
		Data:    rec,
	}
}

func addedUpdate(step, total int, rec models.TrackRecord) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Added,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("+ %s", rec.Label()),
		Data:    rec,
	}
}

func haltedUpdate(identity string, removed, added int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Halted,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Quota exhausted for %s after %d removed, %d added", identity, removed, added),
	}
}

func doneUpdate(removed, added int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Done: %d removed, %d added", removed, added),
	}
}
