// Package jobs stores download jobs: one record per submitted URL tracking
// its status, extracted metadata and the saved file.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"igfetch/pkg/instagram"
)

// Status is the lifecycle state of a job
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transitions are allowed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a job may move from s to next.
// pending -> processing -> completed | failed; pending may also fail
// directly. Setting the current status again is a no-op.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// ParseStatus converts a stored string into a Status
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

var (
	// ErrNotFound is returned for unknown job ids
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when an update breaks the lifecycle
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Job is one download request
type Job struct {
	ID           string                      `json:"id"`
	URL          string                      `json:"url"`
	Type         instagram.ContentType       `json:"type"`
	Status       Status                      `json:"status"`
	Metadata     *instagram.ExtractionResult `json:"metadata,omitempty"`
	FilePath     string                      `json:"filePath,omitempty"`
	FileSize     int64                       `json:"fileSize,omitempty"`
	Error        string                      `json:"error,omitempty"`
	DownloadedAt *time.Time                  `json:"downloadedAt,omitempty"`
	CreatedAt    time.Time                   `json:"createdAt"`
	UpdatedAt    time.Time                   `json:"updatedAt"`
}

// Clone returns a deep copy
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Metadata = j.Metadata.Clone()
	if j.DownloadedAt != nil {
		t := *j.DownloadedAt
		c.DownloadedAt = &t
	}
	return &c
}

// Update carries the fields to change; nil fields are left untouched
type Update struct {
	Status       *Status
	Metadata     *instagram.ExtractionResult
	FilePath     *string
	FileSize     *int64
	DownloadedAt *time.Time
	Error        *string
}

// Apply validates and applies u to j, stamping UpdatedAt with now
func (u Update) Apply(j *Job, now time.Time) error {
	if u.Status != nil {
		if !j.Status.CanTransition(*u.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, *u.Status)
		}
		j.Status = *u.Status
	}
	if u.Metadata != nil {
		j.Metadata = u.Metadata.Clone()
	}
	if u.FilePath != nil {
		j.FilePath = *u.FilePath
	}
	if u.FileSize != nil {
		j.FileSize = *u.FileSize
	}
	if u.DownloadedAt != nil {
		t := *u.DownloadedAt
		j.DownloadedAt = &t
	}
	if u.Error != nil {
		j.Error = *u.Error
	}
	j.UpdatedAt = now
	return nil
}

// Helpers for building updates

// StatusUpdate moves a job to status
func StatusUpdate(status Status) Update {
	return Update{Status: &status}
}

// FailedUpdate marks a job failed with message
func FailedUpdate(message string) Update {
	status := StatusFailed
	return Update{Status: &status, Error: &message}
}

// CompletedUpdate marks a job completed with its saved file
func CompletedUpdate(filePath string, fileSize int64, at time.Time) Update {
	status := StatusCompleted
	return Update{Status: &status, FilePath: &filePath, FileSize: &fileSize, DownloadedAt: &at}
}

// Repository persists jobs
type Repository interface {
	Create(ctx context.Context, url string, contentType instagram.ContentType) (*Job, error)
	Update(ctx context.Context, id string, u Update) (*Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	// ListRecent returns up to limit jobs, newest first
	ListRecent(ctx context.Context, limit int) ([]*Job, error)
	Close() error
}
