package internal

import "time"

// JobRecord is one submitted drawing as remembered in the local history.
type JobRecord struct {
	ID           string     `json:"id" yaml:"id"`
	JobID        string     `json:"job_id" yaml:"job_id"`
	FileName     string     `json:"file_name" yaml:"file_name"`
	Extension    string     `json:"extension" yaml:"extension"`
	SizeBytes    int64      `json:"size_bytes" yaml:"size_bytes"`
	APIURL       string     `json:"api_url" yaml:"api_url"`
	Phase        string     `json:"phase" yaml:"phase"`
	Progress     int        `json:"progress" yaml:"progress"`
	Error        string     `json:"error,omitempty" yaml:"error,omitempty"`
	SavedPath    string     `json:"saved_path,omitempty" yaml:"saved_path,omitempty"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" yaml:"updated_at"`
	DownloadedAt *time.Time `json:"downloaded_at,omitempty" yaml:"downloaded_at,omitempty"`
}
