// Package report implements the submission pipeline: persistence, officer
// notification and receipt recording for completed report drafts.
package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/roadwatch/roadwatch/internal/division"
	"github.com/roadwatch/roadwatch/internal/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ErrNoOfficersNotified is returned when every officer notification failed
// (or the division has no active officer) and best-effort persistence is
// disabled. The report is not persisted in that case.
var ErrNoOfficersNotified = errors.New("report: no officers notified")

// DefaultMaxNotify caps how many active officers are alerted per report.
const DefaultMaxNotify = 2

// Draft is a completed, not-yet-persisted report.
type Draft struct {
	ReporterHandle string
	ReporterName   string
	Type           string
	Description    string
	MediaURL       string // gateway-hosted media reference, re-uploaded on submit
	MediaType      string
	MediaStored    bool // MediaURL already points at durable storage
	Latitude       float64
	Longitude      float64
	Address        string
}

// Result is the outcome of a successful submission.
type Result struct {
	Report         *models.Report
	NotifiedPhones []string
}

// Notifier delivers an officer alert. Failures are per-officer and
// non-fatal for the pipeline.
type Notifier interface {
	Notify(ctx context.Context, phone, body string) error
}

// Uploader copies a gateway-hosted media reference into durable storage
// and returns its public URL.
type Uploader interface {
	UploadFromURL(ctx context.Context, srcURL, contentType, folder string) (string, error)
}

// Alerter receives ops-channel notices about pipeline failures. Optional.
type Alerter interface {
	Alert(ctx context.Context, text string)
}

// Pipeline runs the submission steps for one completed draft. Invoked only
// after division resolution succeeded.
type Pipeline struct {
	db                *gorm.DB
	notifier          Notifier
	uploader          Uploader // optional; drafts without media skip upload
	alerter           Alerter  // optional
	mediaFolder       string
	maxNotify         int
	persistUnnotified bool
}

// PipelineOpts holds parameters for creating a Pipeline.
type PipelineOpts struct {
	DB                *gorm.DB
	Notifier          Notifier
	Uploader          Uploader
	Alerter           Alerter
	MediaFolder       string
	MaxNotify         int  // defaults to DefaultMaxNotify
	PersistUnnotified bool // persist reports even when zero officers were reached
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts PipelineOpts) (*Pipeline, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("report: pipeline: db is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("report: pipeline: notifier is required")
	}
	maxNotify := opts.MaxNotify
	if maxNotify <= 0 {
		maxNotify = DefaultMaxNotify
	}
	folder := opts.MediaFolder
	if folder == "" {
		folder = "reports"
	}
	return &Pipeline{
		db:                opts.DB,
		notifier:          opts.Notifier,
		uploader:          opts.Uploader,
		alerter:           opts.Alerter,
		mediaFolder:       folder,
		maxNotify:         maxNotify,
		persistUnnotified: opts.PersistUnnotified,
	}, nil
}

// Submit persists the draft as a report and notifies the division's active
// officers. Media upload and the live officer lookup run concurrently; the
// fan-out notification is concurrent per officer. Persistence is gated on
// at least one successful notification unless persistUnnotified is set.
func (p *Pipeline) Submit(ctx context.Context, d Draft, div *models.Division) (*Result, error) {
	if div == nil {
		return nil, fmt.Errorf("report: submit: division is required")
	}

	// The report ID is minted up front so officer alerts can carry a
	// resolve-action reference before the row exists.
	reportID := uuid.New().String()

	// Media upload and officer lookup are independent.
	var (
		mediaURL = d.MediaURL
		officers []models.Officer
	)
	g, gctx := errgroup.WithContext(ctx)
	if d.MediaURL != "" && !d.MediaStored && p.uploader != nil {
		g.Go(func() error {
			url, err := p.uploader.UploadFromURL(gctx, d.MediaURL, d.MediaType, p.mediaFolder)
			if err != nil {
				return fmt.Errorf("upload media: %w", err)
			}
			mediaURL = url
			return nil
		})
	}
	g.Go(func() error {
		fresh, err := division.ByID(p.db, div.ID)
		if err != nil {
			return fmt.Errorf("officer lookup: %w", err)
		}
		officers = division.ActiveOfficers(fresh, p.maxNotify)
		return nil
	})
	if err := g.Wait(); err != nil {
		// An upload failure blocks persistence so no record exists
		// without its expected media. The caller tells the user.
		p.alert(ctx, fmt.Sprintf("report %s (%s): submission failed: %v", reportID, div.Code, err))
		return nil, fmt.Errorf("report: submit: %w", err)
	}

	alertBody := officerAlert(reportID, d, div, mediaURL)

	// Fan out notifications; per-officer failures are logged and excluded
	// from the receipt list, never fatal for the remaining officers.
	var (
		mu       sync.Mutex
		receipts []models.NotificationReceipt
		notified []string
		wg       sync.WaitGroup
	)
	for _, o := range officers {
		wg.Add(1)
		go func(o models.Officer) {
			defer wg.Done()
			if err := p.notifier.Notify(ctx, o.Phone, alertBody); err != nil {
				log.Printf("report: notify officer %s for %s: %v", o.Phone, reportID, err)
				return
			}
			mu.Lock()
			receipts = append(receipts, models.NotificationReceipt{
				ReportID:     reportID,
				OfficerPhone: o.Phone,
				NotifiedAt:   time.Now(),
			})
			notified = append(notified, o.Phone)
			mu.Unlock()
		}(o)
	}
	wg.Wait()

	if len(receipts) == 0 && !p.persistUnnotified {
		p.alert(ctx, fmt.Sprintf("report dropped for %s: zero officers notified (roster size %d)", div.Code, len(officers)))
		return nil, ErrNoOfficersNotified
	}

	rep := &models.Report{
		ID:               reportID,
		ReporterHandle:   d.ReporterHandle,
		ReporterName:     d.ReporterName,
		Type:             d.Type,
		Description:      d.Description,
		MediaURL:         mediaURL,
		MediaType:        d.MediaType,
		Latitude:         d.Latitude,
		Longitude:        d.Longitude,
		Address:          d.Address,
		Status:           models.StatusPending,
		DivisionID:       &div.ID,
		DivisionName:     div.Name,
		DivisionNotified: len(receipts) > 0,
		Receipts:         receipts,
	}
	if err := p.db.Create(rep).Error; err != nil {
		p.alert(ctx, fmt.Sprintf("report %s (%s): persist failed: %v", reportID, div.Code, err))
		return nil, fmt.Errorf("report: persist: %w", err)
	}

	log.Printf("report: %s registered [division=%s type=%s notified=%d]",
		reportID, div.Code, d.Type, len(notified))
	return &Result{Report: rep, NotifiedPhones: notified}, nil
}

// officerAlert formats the notification sent to division officers.
func officerAlert(reportID string, d Draft, div *models.Division, mediaURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 New %s report — %s division\n", d.Type, div.Name)
	if d.Address != "" {
		fmt.Fprintf(&b, "Location: %s (%.5f, %.5f)\n", d.Address, d.Latitude, d.Longitude)
	} else {
		fmt.Fprintf(&b, "Location: %.5f, %.5f\n", d.Latitude, d.Longitude)
	}
	if d.Description != "" {
		fmt.Fprintf(&b, "Details: %s\n", d.Description)
	}
	if mediaURL != "" {
		fmt.Fprintf(&b, "Photo: %s\n", mediaURL)
	}
	if d.ReporterName != "" {
		fmt.Fprintf(&b, "Reported by: %s\n", d.ReporterName)
	}
	fmt.Fprintf(&b, "Ref: %s", reportID)
	return b.String()
}

// alert forwards a notice to the ops channel when one is configured.
func (p *Pipeline) alert(ctx context.Context, text string) {
	if p.alerter != nil {
		p.alerter.Alert(ctx, text)
	}
}
