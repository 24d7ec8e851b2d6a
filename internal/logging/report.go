package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	episodesSheet = "Episodes"
	summarySheet  = "Summary"
)

// ExportXLSX writes the episodes of one run to a workbook with an episode
// sheet and a summary sheet.
func ExportXLSX(path, runID string, records []EpisodeRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", episodesSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	header := make([]interface{}, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(episodesSheet, "A1", &header); err != nil {
		return err
	}

	var scoreSum float64
	var record, frames int
	for i, r := range records {
		row := []interface{}{
			r.Episode, r.Score, r.Record, r.Frames, r.Reward, r.Death, r.Cycles,
			r.Length, r.Epsilon, r.Explored, r.Loss, r.MeanScore, r.Seed,
		}
		if err := f.SetSheetRow(episodesSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("failed to write episode %d: %w", r.Episode, err)
		}
		scoreSum += float64(r.Score)
		frames += r.Frames
		if r.Score > record {
			record = r.Score
		}
	}

	mean := 0.0
	if len(records) > 0 {
		mean = scoreSum / float64(len(records))
	}
	summary := [][]interface{}{
		{"run", runID},
		{"episodes", len(records)},
		{"record", record},
		{"mean_score", mean},
		{"total_frames", frames},
	}
	for i, row := range summary {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	return nil
}
