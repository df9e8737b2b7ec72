package domain

import (
	"fmt"
)

// IOError is a filesystem failure tied to one path.
type IOError struct {
	Op   string `json:"op"`
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// Error formats the failing operation and path.
func (e *IOError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *IOError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// FetchError is an HTTP-level failure: transport error or non-success status.
// StatusCode is zero when no response was received.
type FetchError struct {
	URL        string `json:"url"`
	StatusCode int    `json:"statusCode,omitempty"`
	Status     string `json:"status,omitempty"`
	Err        error  `json:"-"`
}

// Error names the URL and either the status or the transport failure.
func (e *FetchError) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode != 0 {
		status := e.Status
		if status == "" {
			status = fmt.Sprintf("%d", e.StatusCode)
		}
		return fmt.Sprintf("download %s: HTTP status %s", e.URL, status)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ArchiveError is a failure opening or reading a zip container.
type ArchiveError struct {
	Path  string `json:"path"`
	Entry string `json:"entry,omitempty"`
	Err   error  `json:"-"`
}

// Error names the archive and, when known, the entry being read.
func (e *ArchiveError) Error() string {
	if e == nil {
		return ""
	}
	if e.Entry == "" {
		return fmt.Sprintf("archive %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("archive %s: entry %s: %v", e.Path, e.Entry, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *ArchiveError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
