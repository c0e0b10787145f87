// Package logbook submits and lists guard activity reports. Validation runs
// before any network call so an invalid report never reaches the wire.
package logbook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/omniwatch/omniwatch/internal/api"
	"github.com/omniwatch/omniwatch/internal/models"
	"github.com/omniwatch/omniwatch/internal/notify"
)

// Validation errors.
var (
	ErrTitleRequired       = errors.New("logbook: title is required")
	ErrDescriptionRequired = errors.New("logbook: description is required")
	ErrUnknownCategory     = errors.New("logbook: unknown category")
)

// API is the remote surface the logbook depends on.
type API interface {
	CreateLog(ctx context.Context, req api.CreateLogRequest) error
	ListLogs(ctx context.Context, limit int) ([]models.LogEntry, error)
}

// Book validates and submits log entries.
type Book struct {
	apiClient API
	notifier  notify.Notifier
}

// New creates a Book. The notifier may be nil.
func New(apiClient API, notifier notify.Notifier) *Book {
	return &Book{apiClient: apiClient, notifier: notifier}
}

// Entry is a report to submit. ImagePaths are local files attached to the
// report; PatrolID links the entry to an ongoing patrol and may be empty.
type Entry struct {
	Title       string
	Description string
	Category    string
	PatrolID    string
	ImagePaths  []string
}

// Validate checks the entry without touching the network.
func (e Entry) Validate() error {
	if e.Title == "" {
		return ErrTitleRequired
	}
	if e.Description == "" {
		return ErrDescriptionRequired
	}
	if !models.ValidCategory(e.Category) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, e.Category)
	}
	return nil
}

// Submit validates the entry, encodes any attached images, and posts the
// report. Incident reports additionally raise a notification, best effort.
func (b *Book) Submit(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	images, err := encodeImages(e.ImagePaths)
	if err != nil {
		return err
	}

	err = b.apiClient.CreateLog(ctx, api.CreateLogRequest{
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Category,
		PatrolID:    e.PatrolID,
		Images:      images,
	})
	if err != nil {
		return fmt.Errorf("logbook: submit: %w", err)
	}

	if e.Category == models.CategoryIncident && b.notifier != nil {
		ev := notify.Event{
			Kind:  notify.KindIncident,
			Title: "Incident: " + e.Title,
			Body:  e.Description,
		}
		if err := b.notifier.Send(ctx, ev); err != nil {
			log.Printf("logbook: notify incident: %v", err)
		}
	}
	return nil
}

// List returns the most recent log entries.
func (b *Book) List(ctx context.Context, limit int) ([]models.LogEntry, error) {
	return b.apiClient.ListLogs(ctx, limit)
}

// encodeImages reads each file and returns a JSON array of base64 blobs, or
// empty when there are no attachments.
func encodeImages(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", nil
	}
	blobs := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("logbook: read image %s: %w", p, err)
		}
		blobs = append(blobs, base64.StdEncoding.EncodeToString(data))
	}
	encoded, err := json.Marshal(blobs)
	if err != nil {
		return "", fmt.Errorf("logbook: encode images: %w", err)
	}
	return string(encoded), nil
}
