package api

import (
	"time"

	"bootforge/internal/builder"
	"bootforge/internal/history"
	"bootforge/internal/preview"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FileInfo describes one structured-data file in the data directory.
type FileInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

// VersionPair carries the two manifest version dimensions.
type VersionPair struct {
	App   string `json:"appVersion"`
	Model string `json:"modelVersion"`
}

// VersionDelta reports current and next version pairs.
type VersionDelta struct {
	Current VersionPair `json:"current"`
	Next    VersionPair `json:"next"`
}

// BuildResponse reports a build outcome in a transport-friendly format.
type BuildResponse struct {
	OK        bool         `json:"ok"`
	ExitCode  int          `json:"exitCode"`
	Command   string       `json:"command"`
	Stdout    string       `json:"stdout"`
	Stderr    string       `json:"stderr"`
	TimedOut  bool         `json:"timedOut"`
	Bump      VersionDelta `json:"bump"`
	Artifacts []string     `json:"artifacts,omitempty"`
}

// EntryInfo describes one archive member from a preview fetch.
type EntryInfo struct {
	Name string `json:"name"`
	Size uint64 `json:"size"`
}

// FetchResponse reports a preview fetch outcome.
type FetchResponse struct {
	Entries       []EntryInfo `json:"entries"`
	DownloadBytes int64       `json:"downloadBytes"`
	Command       string      `json:"command"`
	Stdout        string      `json:"stdout,omitempty"`
	Stderr        string      `json:"stderr,omitempty"`
}

// HistoryEntry describes one recorded run.
type HistoryEntry struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt"`
	OK         bool   `json:"ok"`
	ExitCode   int    `json:"exitCode"`
	Detail     string `json:"detail,omitempty"`
}

// FileListResponse wraps the data-directory listing.
type FileListResponse struct {
	Files []FileInfo `json:"files"`
}

// EntryResponse wraps one extracted entry's text.
type EntryResponse struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// HistoryResponse wraps recent run history.
type HistoryResponse struct {
	Runs []HistoryEntry `json:"runs"`
}

// StatusResponse aggregates service runtime information. Versions degrade
// to empty strings when the manifest is missing or unreadable.
type StatusResponse struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	ManifestPath string      `json:"manifestPath"`
	Versions     VersionPair `json:"versions"`
}

// FromBuildResult converts a builder result to its DTO.
func FromBuildResult(result *builder.Result) *BuildResponse {
	if result == nil {
		return nil
	}
	return &BuildResponse{
		OK:       result.OK,
		ExitCode: result.ExitCode,
		Command:  result.Command,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		TimedOut: result.TimedOut,
		Bump: VersionDelta{
			Current: VersionPair{App: result.Bump.Current.App, Model: result.Bump.Current.Model},
			Next:    VersionPair{App: result.Bump.Next.App, Model: result.Bump.Next.Model},
		},
		Artifacts: result.Artifacts,
	}
}

// FromFetchResult converts a preview fetch result to its DTO.
func FromFetchResult(result *preview.FetchResult) *FetchResponse {
	if result == nil {
		return nil
	}
	entries := make([]EntryInfo, 0, len(result.Entries))
	for _, entry := range result.Entries {
		entries = append(entries, EntryInfo{Name: entry.Name, Size: entry.Size})
	}
	return &FetchResponse{
		Entries:       entries,
		DownloadBytes: result.DownloadBytes,
		Command:       result.DecryptCommand,
		Stdout:        result.Stdout,
		Stderr:        result.Stderr,
	}
}

// FromRun converts a history run to its DTO.
func FromRun(run history.Run) HistoryEntry {
	return HistoryEntry{
		ID:         run.ID,
		Kind:       run.Kind,
		StartedAt:  formatTime(run.StartedAt),
		FinishedAt: formatTime(run.FinishedAt),
		OK:         run.OK,
		ExitCode:   run.ExitCode,
		Detail:     run.Detail,
	}
}

// FromRuns converts recent history in bulk.
func FromRuns(runs []history.Run) []HistoryEntry {
	if len(runs) == 0 {
		return nil
	}
	out := make([]HistoryEntry, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateTimeFormat)
}
