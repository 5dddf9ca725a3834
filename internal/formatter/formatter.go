// package formatter exports mirror records to flat formats (CSV, Markdown, plain text) and
// imports them back, including the legacy history CSV layout.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/shared"
)

// Format is an export file format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat accepts a format name or its usual file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
	}
}

// Ext returns the file extension used for the format.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return ".csv"
	}
}

// MirrorExport is a mirror header with its records in position order.
type MirrorExport struct {
	Mirror  models.Mirror
	Records []models.TrackRecord
}

// Columns of the native CSV layout.
var Columns = []string{"source_id", "title", "artist", "added_at", "resolved_title", "resolved_item_id", "video_id"}

// LegacyColumns of the history CSV written by earlier versions of the sync script.
var LegacyColumns = []string{"Spotify Id", "Track", "Artist", "Added Date", "YT Title", "YT PlaylistItemId"}

const (
	legacyTimeLayout = "20060102150405"
	trackURIPrefix   = "spotify:track:"
)

// ExportToCSV writes records in the native column layout.
func ExportToCSV(export *MirrorExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(Columns); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range export.Records {
		row := []string{
			rec.SourceID,
			rec.Title,
			rec.Artist,
			formatTime(rec.AddedAt),
			rec.ResolvedTitle,
			rec.ResolvedItemID,
			rec.VideoID,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders the mirror as a Markdown document with links to the target videos.
func ExportToMarkdown(export *MirrorExport) ([]byte, error) {
	var buf bytes.Buffer
	m := export.Mirror

	fmt.Fprintf(&buf, "# %s\n\n", title(m))
	if m.SourceOwner != "" {
		fmt.Fprintf(&buf, "**Owner**: %s\n", m.SourceOwner)
	}
	fmt.Fprintf(&buf, "**Mirror**: `%s`\n", m.Key)
	if m.TargetPlaylistID != "" {
		fmt.Fprintf(&buf, "**Target**: [%s](https://www.youtube.com/playlist?list=%s)\n", m.TargetPlaylistID, m.TargetPlaylistID)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(export.Records))

	buf.WriteString("## Tracks\n\n")
	for i, rec := range export.Records {
		fmt.Fprintf(&buf, "%d. %s - %s", i+1, rec.Artist, rec.Title)
		if rec.VideoID != "" {
			fmt.Fprintf(&buf, " ([%s](https://www.youtube.com/watch?v=%s))", rec.Label(), rec.VideoID)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText renders the mirror as a numbered plain text list.
func ExportToText(export *MirrorExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", title(export.Mirror))
	fmt.Fprintf(&buf, "Mirror: %s\n", export.Mirror.Key)
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Records))

	for i, rec := range export.Records {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, rec.Artist, rec.Title)
	}

	return buf.Bytes(), nil
}

// Export renders the mirror in the given format.
func Export(export *MirrorExport, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatText:
		return ExportToText(export)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// WriteExport writes the mirror to path in the given format.
//
// Defaults to {source playlist id}{ext} in the working directory.
func WriteExport(export *MirrorExport, format Format, path string) (string, error) {
	if path == "" {
		path = export.Mirror.Key.SourcePlaylist + format.Ext()
	}

	data, err := Export(export, format)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// ParseCSV reads records from either the native or the legacy layout, detected by the header row.
//
// Legacy rows carry no video id; their track URIs are reduced to bare ids.
func ParseCSV(r io.Reader) ([]models.TrackRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty CSV", shared.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var parse func(row []string) (models.TrackRecord, error)
	switch {
	case sameColumns(header, Columns):
		parse = parseRow
	case sameColumns(header, LegacyColumns):
		parse = parseLegacyRow
	default:
		return nil, fmt.Errorf("%w: unrecognized CSV header %q", shared.ErrInvalidInput, strings.Join(header, ","))
	}

	var records []models.TrackRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		if len(row) != len(header) {
			return nil, fmt.Errorf("%w: line %d has %d fields, want %d", shared.ErrInvalidInput, line, len(row), len(header))
		}

		rec, err := parse(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadCSVFile parses a CSV export from disk.
func ReadCSVFile(path string) ([]models.TrackRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return ParseCSV(f)
}

// Duplicates splits records into first occurrences and the later records repeating a source id.
func Duplicates(records []models.TrackRecord) (unique, dups []models.TrackRecord) {
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if seen[rec.SourceID] {
			dups = append(dups, rec)
			continue
		}
		seen[rec.SourceID] = true
		unique = append(unique, rec)
	}
	return unique, dups
}

func parseRow(row []string) (models.TrackRecord, error) {
	rec := models.TrackRecord{
		SourceID:       row[0],
		Title:          row[1],
		Artist:         row[2],
		ResolvedTitle:  row[4],
		ResolvedItemID: row[5],
		VideoID:        row[6],
	}
	if rec.SourceID == "" {
		return rec, fmt.Errorf("%w: empty source id", shared.ErrInvalidInput)
	}

	if row[3] != "" {
		t, err := time.Parse(time.RFC3339, row[3])
		if err != nil {
			return rec, fmt.Errorf("%w: added_at %q: %v", shared.ErrInvalidInput, row[3], err)
		}
		rec.AddedAt = t
	}
	return rec, nil
}

func parseLegacyRow(row []string) (models.TrackRecord, error) {
	rec := models.TrackRecord{
		SourceID:       strings.TrimPrefix(row[0], trackURIPrefix),
		Title:          row[1],
		Artist:         row[2],
		ResolvedTitle:  row[4],
		ResolvedItemID: row[5],
	}
	if rec.SourceID == "" {
		return rec, fmt.Errorf("%w: empty Spotify Id", shared.ErrInvalidInput)
	}

	if row[3] != "" {
		t, err := time.Parse(legacyTimeLayout, row[3])
		if err != nil {
			return rec, fmt.Errorf("%w: Added Date %q: %v", shared.ErrInvalidInput, row[3], err)
		}
		rec.AddedAt = t
	}
	return rec, nil
}

func sameColumns(header, want []string) bool {
	if len(header) != len(want) {
		return false
	}
	for i := range want {
		if strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")) != want[i] {
			return false
		}
	}
	return true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func title(m models.Mirror) string {
	if m.SourceTitle != "" {
		return m.SourceTitle
	}
	return m.Key.SourcePlaylist
}
