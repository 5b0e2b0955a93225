package businessflow

import (
	"encoding/json"
	"os"
)

// BlacklistedRow describes one suppressed input row.
type BlacklistedRow struct {
	RowNumber    int    `json:"row_number"`
	BusinessName string `json:"business_name"`
	Postcode     string `json:"postcode,omitempty"`
	City         string `json:"city,omitempty"`
}

// RowError describes one row-local failure that did not stop the run.
type RowError struct {
	RowNumber    int    `json:"row_number"`
	BusinessName string `json:"business_name,omitempty"`
	Error        string `json:"error"`
}

// ImportReport is the terminal summary of a run. Produced for every run that
// finishes, including partially failed ones; a fatal campaign-code conflict
// yields an error report instead.
type ImportReport struct {
	CampaignID         string           `json:"campaign_id"`
	OutputFile         string           `json:"output_file,omitempty"`
	TotalRows          int              `json:"total_rows"`
	RowsProcessed      int              `json:"rows_processed"`
	LinksCreated       int              `json:"links_created"`
	LinksSkipped       int              `json:"links_skipped"`
	TargetsCreated     int              `json:"targets_created"`
	BlacklistedCount   int              `json:"blacklisted_count"`
	Blacklisted        []BlacklistedRow `json:"blacklisted,omitempty"`
	ExcludedNoDest     int              `json:"excluded_no_destination"`
	ErrorCount         int              `json:"error_count"`
	Errors             []RowError       `json:"errors,omitempty"`
	GeocodedCount      int              `json:"geocoded_count"`
	GeocodeFailedCount int              `json:"geocode_failed_count"`
	BatchCommits       int              `json:"batch_commits"`
}

// ErrorReport replaces the success report when the run aborts fatally.
type ErrorReport struct {
	Error          string `json:"error"`
	CampaignID     string `json:"campaign_id,omitempty"`
	ConflictingID  string `json:"conflicting_campaign_id,omitempty"`
	CleanupTargets int64  `json:"cleanup_deleted_targets"`
	CleanupLinks   int64  `json:"cleanup_deleted_links"`
}

// WriteJSON writes the report to path with stable indentation.
func (r *ImportReport) WriteJSON(path string) error {
	return writeJSONFile(path, r)
}

// WriteJSON writes the error report to path.
func (r *ErrorReport) WriteJSON(path string) error {
	return writeJSONFile(path, r)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
