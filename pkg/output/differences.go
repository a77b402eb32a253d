package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/sdejongh/remotesync/pkg/models"
)

// WriteOutcomesReport writes the per-file outcomes of a session to a file.
// Format can be "human" or "json". Nothing is written when no file was resolved.
func WriteOutcomesReport(report *models.SyncReport, filepath string, format string) error {
	if len(report.Outcomes) == 0 {
		return nil
	}

	file, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	switch format {
	case "json":
		return writeOutcomesJSON(report, file)
	default:
		return writeOutcomesHuman(report, file)
	}
}

// writeOutcomesHuman groups outcomes by category
func writeOutcomesHuman(report *models.SyncReport, w io.Writer) error {
	fmt.Fprintf(w, "Sync Report\n")
	fmt.Fprintf(w, "===========\n\n")
	fmt.Fprintf(w, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "Provider: %s\n", report.Provider)
	fmt.Fprintf(w, "Direction: %s\n", report.Direction)
	fmt.Fprintf(w, "Root: %s\n", report.RootPath)
	fmt.Fprintf(w, "Dry Run: %v\n", report.DryRun)
	fmt.Fprintf(w, "Status: %s\n\n", report.Status)

	groups := []struct {
		label string
		match func(o models.TransferOutcome) bool
	}{
		{"Failed", func(o models.TransferOutcome) bool { return !o.Success() }},
		{"Transferred", func(o models.TransferOutcome) bool {
			return o.Success() && !o.DryRun && o.Action != models.ActionSkip
		}},
		{"Would Transfer", func(o models.TransferOutcome) bool { return o.DryRun }},
		{"Skipped", func(o models.TransferOutcome) bool { return o.Action == models.ActionSkip }},
	}

	for _, g := range groups {
		var matched []models.TransferOutcome
		for _, o := range report.Outcomes {
			if g.match(o) {
				matched = append(matched, o)
			}
		}
		if len(matched) == 0 {
			continue
		}

		label := fmt.Sprintf("%s (%d files)", g.label, len(matched))
		fmt.Fprintf(w, "%s\n", label)
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", len(label)))
		for _, o := range matched {
			fmt.Fprintf(w, "  %s\n", o.Path)
			if o.Reason != "" {
				fmt.Fprintf(w, "    Error:   %s\n", o.Reason)
			}
			if o.Detail != "" {
				fmt.Fprintf(w, "    Details: %s\n", o.Detail)
			}
			if o.Bytes > 0 {
				fmt.Fprintf(w, "    Size:    %s\n", formatBytes(o.Bytes))
			}
		}
		fmt.Fprintf(w, "\n")
	}

	return nil
}

// writeOutcomesJSON writes outcomes in JSON format
func writeOutcomesJSON(report *models.SyncReport, w io.Writer) error {
	output := struct {
		Generated string `json:"generated"`
		JSONReportData
	}{
		Generated:      time.Now().Format(time.RFC3339),
		JSONReportData: BuildJSONReport(report),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
