// package formatter renders conversion reports to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"crossfade/internal/models"
	"crossfade/internal/shared"
)

// Report bundles a finished job with its match rows for rendering.
type Report struct {
	Job     *models.ConversionJob
	Matches []*models.TrackMatch
}

// Format identifies a report output format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, name)
	}
}

// Render produces the report in the requested format.
func Render(report Report, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ReportToCSV(report)
	case FormatMarkdown:
		return ReportToMarkdown(report), nil
	case FormatText:
		return ReportToText(report), nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// WriteReport renders the report and writes it to path.
func WriteReport(report Report, format Format, path string) error {
	data, err := Render(report, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReportToCSV renders match rows with columns:
// Position, Source Track, Source Artist, Destination Track, Destination Artist, Confidence, Status
func ReportToCSV(report Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Source Track", "Source Artist", "Destination Track", "Destination Artist", "Confidence", "Status"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, m := range report.Matches {
		source := m.Source()

		destName, destArtist := "", ""
		if dest := m.Destination(); dest != nil {
			destName = dest.Name
			destArtist = dest.FirstArtist()
		}

		record := []string{
			strconv.Itoa(m.Sequence()),
			source.Name,
			source.FirstArtist(),
			destName,
			destArtist,
			strconv.FormatFloat(m.Confidence(), 'f', 2, 64),
			string(m.Status()),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ReportToMarkdown renders the job summary and a match table.
func ReportToMarkdown(report Report) []byte {
	var buf bytes.Buffer
	job := report.Job

	buf.WriteString(fmt.Sprintf("# Conversion Report: %s\n\n", job.SourcePlaylistName()))
	buf.WriteString(fmt.Sprintf("**From**: %s\n", job.SourcePlatform()))
	buf.WriteString(fmt.Sprintf("**To**: %s (%s)\n", job.DestinationPlatform(), job.DestinationPlaylistName()))
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", job.Status()))
	if job.ErrorMessage() != "" {
		buf.WriteString(fmt.Sprintf("**Error**: %s\n", job.ErrorMessage()))
	}
	buf.WriteString(fmt.Sprintf("**Tracks**: %d total, %d auto-matched, %d needing review, %d failed\n\n",
		job.TotalTracks(), job.AutoMatched(), job.ReviewPending(), job.FailedTracks()))

	buf.WriteString("| # | Source | Destination | Confidence | Status |\n")
	buf.WriteString("|---|--------|-------------|------------|--------|\n")

	for _, m := range report.Matches {
		source := m.Source()

		destCell := "-"
		if dest := m.Destination(); dest != nil {
			destCell = trackCell(dest.Name, dest.FirstArtist(), dest.DurationMS)
		}

		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %.2f | %s |\n",
			m.Sequence(),
			trackCell(source.Name, source.FirstArtist(), source.DurationMS),
			destCell,
			m.Confidence(),
			m.Status(),
		))
	}

	return buf.Bytes()
}

// ReportToText renders a compact plain text summary.
func ReportToText(report Report) []byte {
	var buf bytes.Buffer
	job := report.Job

	buf.WriteString(fmt.Sprintf("Conversion: %s (%s -> %s)\n", job.SourcePlaylistName(), job.SourcePlatform(), job.DestinationPlatform()))
	buf.WriteString(fmt.Sprintf("Status: %s\n", job.Status()))
	buf.WriteString(fmt.Sprintf("Tracks: %d total / %d auto / %d review / %d failed\n\n",
		job.TotalTracks(), job.AutoMatched(), job.ReviewPending(), job.FailedTracks()))

	for _, m := range report.Matches {
		source := m.Source()

		if dest := m.Destination(); dest != nil {
			buf.WriteString(fmt.Sprintf("%d. %s - %s -> %s - %s (%.2f, %s)\n",
				m.Sequence(), source.FirstArtist(), source.Name,
				dest.FirstArtist(), dest.Name, m.Confidence(), m.Status()))
		} else {
			buf.WriteString(fmt.Sprintf("%d. %s - %s -> no match (%s)\n",
				m.Sequence(), source.FirstArtist(), source.Name, m.Status()))
		}
	}

	return buf.Bytes()
}

func trackCell(name, artist string, durationMS int) string {
	cell := name
	if artist != "" {
		cell = artist + " - " + name
	}
	if durationMS > 0 {
		cell += " [" + shared.FormatDuration(durationMS) + "]"
	}
	return strings.ReplaceAll(cell, "|", "\\|")
}
