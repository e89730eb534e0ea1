package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/roadwatch/roadwatch/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openPipelineTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Division{}, &models.Officer{},
		&models.Report{}, &models.NotificationReceipt{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// seedDivision creates a division with n active officers, phones
// +9198000000NN in roster order.
func seedDivision(t *testing.T, db *gorm.DB, n int) *models.Division {
	t.Helper()
	div := models.Division{
		Name:     "DIGHI ALANDI",
		Code:     "DIGHI",
		Boundary: `[[18.55,73.80],[18.70,73.80],[18.70,73.95],[18.55,73.95]]`,
	}
	if err := db.Create(&div).Error; err != nil {
		t.Fatalf("seed division: %v", err)
	}
	for i := 0; i < n; i++ {
		o := models.Officer{
			DivisionID: div.ID,
			Name:       fmt.Sprintf("Officer %d", i+1),
			Phone:      fmt.Sprintf("+91980000%04d", i+1),
			IsActive:   true,
			Status:     models.OfficerStatusActive,
			JoinedAt:   time.Now(),
		}
		if err := db.Create(&o).Error; err != nil {
			t.Fatalf("seed officer: %v", err)
		}
		if i == 0 {
			db.Model(&div).Update("active_officer_id", o.ID)
		}
	}
	return &div
}

// fakeNotifier fails for phones listed in failFor and records the rest.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    map[string]string // phone -> body
	failFor map[string]bool
}

func newFakeNotifier(failFor ...string) *fakeNotifier {
	f := &fakeNotifier{sent: make(map[string]string), failFor: make(map[string]bool)}
	for _, p := range failFor {
		f.failFor[p] = true
	}
	return f
}

func (f *fakeNotifier) Notify(ctx context.Context, phone, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[phone] {
		return errors.New("gateway 500")
	}
	f.sent[phone] = body
	return nil
}

type fakeUploader struct {
	err   error
	calls int
}

func (f *fakeUploader) UploadFromURL(ctx context.Context, srcURL, contentType, folder string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "https://media.example/" + folder + "/stored.jpg", nil
}

type fakeAlerter struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeAlerter) Alert(ctx context.Context, text string) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
}

func testDraft() Draft {
	return Draft{
		ReporterHandle: "whatsapp:+919912345678",
		ReporterName:   "Asha",
		Type:           models.TypeIllegalParking,
		Description:    "van blocking the school gate",
		Latitude:       18.62,
		Longitude:      73.87,
	}
}

func TestSubmitNotifiesAndPersists(t *testing.T) {
	db := openPipelineTestDB(t)
	div := seedDivision(t, db, 3)
	notifier := newFakeNotifier()

	p, err := NewPipeline(PipelineOpts{DB: db, Notifier: notifier, MaxNotify: 2})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	res, err := p.Submit(context.Background(), testDraft(), div)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Capped at MaxNotify in roster order, third officer untouched.
	if len(res.NotifiedPhones) != 2 {
		t.Fatalf("notified = %v, want 2 officers", res.NotifiedPhones)
	}
	if _, ok := notifier.sent["+919800000003"]; ok {
		t.Error("third officer notified past the cap")
	}

	var rep models.Report
	if err := db.Preload("Receipts").First(&rep, "id = ?", res.Report.ID).Error; err != nil {
		t.Fatalf("load report: %v", err)
	}
	if rep.Status != models.StatusPending {
		t.Errorf("status = %q, want Pending", rep.Status)
	}
	if !rep.DivisionNotified {
		t.Error("DivisionNotified = false, want true")
	}
	if len(rep.Receipts) != 2 {
		t.Errorf("receipts = %d, want 2", len(rep.Receipts))
	}

	// Officer alert carries the reference and the location.
	body := notifier.sent["+919800000001"]
	for _, want := range []string{rep.ID, "18.62000", "Illegal Parking", "DIGHI ALANDI"} {
		if !strings.Contains(body, want) {
			t.Errorf("alert body %q missing %q", body, want)
		}
	}
}

// Receipts record exactly the officers actually reached: a per-officer
// failure shrinks the receipt list without failing the submission.
func TestSubmitPartialNotificationFailure(t *testing.T) {
	db := openPipelineTestDB(t)
	div := seedDivision(t, db, 2)
	notifier := newFakeNotifier("+919800000001")

	p, _ := NewPipeline(PipelineOpts{DB: db, Notifier: notifier})
	res, err := p.Submit(context.Background(), testDraft(), div)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(res.NotifiedPhones) != 1 || res.NotifiedPhones[0] != "+919800000002" {
		t.Errorf("notified = %v, want only the reachable officer", res.NotifiedPhones)
	}

	var count int64
	db.Model(&models.NotificationReceipt{}).Where("report_id = ?", res.Report.ID).Count(&count)
	if count != 1 {
		t.Errorf("receipts = %d, want 1", count)
	}
}

func TestSubmitZeroNotifiedDropsReport(t *testing.T) {
	db := openPipelineTestDB(t)
	div := seedDivision(t, db, 1)
	notifier := newFakeNotifier("+919800000001")
	alerter := &fakeAlerter{}

	p, _ := NewPipeline(PipelineOpts{DB: db, Notifier: notifier, Alerter: alerter})
	_, err := p.Submit(context.Background(), testDraft(), div)
	if !errors.Is(err, ErrNoOfficersNotified) {
		t.Fatalf("err = %v, want ErrNoOfficersNotified", err)
	}

	var count int64
	db.Model(&models.Report{}).Count(&count)
	if count != 0 {
		t.Errorf("reports = %d, want 0 (persistence gated on notification)", count)
	}
	if len(alerter.texts) != 1 {
		t.Errorf("ops alerts = %d, want 1", len(alerter.texts))
	}
}

func TestSubmitZeroNotifiedPersistsWhenConfigured(t *testing.T) {
	db := openPipelineTestDB(t)
	div := seedDivision(t, db, 0) // empty roster

	p, _ := NewPipeline(PipelineOpts{
		DB: db, Notifier: newFakeNotifier(), PersistUnnotified: true,
	})
	res, err := p.Submit(context.Background(), testDraft(), div)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Report.DivisionNotified {
		t.Error("DivisionNotified = true, want false with empty roster")
	}
	if len(res.NotifiedPhones) != 0 {
		t.Errorf("notified = %v, want none", res.NotifiedPhones)
	}

	var count int64
	db.Model(&models.Report{}).Count(&count)
	if count != 1 {
		t.Errorf("reports = %d, want 1", count)
	}
}

func TestSubmitUploadsMediaBeforePersist(t *testing.T) {
	db := openPipelineTestDB(t)
	div := seedDivision(t, db, 1)
	uploader := &fakeUploader{}

	p, _ := NewPipeline(PipelineOpts{
		DB: db, Notifier: newFakeNotifier(), Uploader: uploader, MediaFolder: "reports",
	})
	d := testDraft()
	d.MediaURL = "https://gateway.example/media/raw"
	d.MediaType = "image/jpeg"

	res, err := p.Submit(context.Background(), d, div)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if uploader.calls != 1 {
		t.Errorf("uploader calls = %d, want 1", uploader.calls)
	}
	if res.Report.MediaURL != "https://media.example/reports/stored.jpg" {
		t.Errorf("persisted media = %q, want durable URL", res.Report.MediaURL)
	}
}

func TestSubmitUploadFailureBlocksEverything(t *testing.T) {
	db := openPipelineTestDB(t)
	div := seedDivision(t, db, 1)
	notifier := newFakeNotifier()
	alerter := &fakeAlerter{}

	p, _ := NewPipeline(PipelineOpts{
		DB: db, Notifier: notifier,
		Uploader: &fakeUploader{err: errors.New("bucket unavailable")},
		Alerter:  alerter,
	})
	d := testDraft()
	d.MediaURL = "https://gateway.example/media/raw"

	_, err := p.Submit(context.Background(), d, div)
	if err == nil {
		t.Fatal("Submit succeeded, want upload failure")
	}

	if len(notifier.sent) != 0 {
		t.Errorf("officers notified despite upload failure: %v", notifier.sent)
	}
	var count int64
	db.Model(&models.Report{}).Count(&count)
	if count != 0 {
		t.Errorf("reports = %d, want 0", count)
	}
	if len(alerter.texts) != 1 {
		t.Errorf("ops alerts = %d, want 1", len(alerter.texts))
	}
}

func TestSubmitStoredMediaSkipsUploader(t *testing.T) {
	db := openPipelineTestDB(t)
	div := seedDivision(t, db, 1)
	uploader := &fakeUploader{err: errors.New("must not be called")}

	p, _ := NewPipeline(PipelineOpts{DB: db, Notifier: newFakeNotifier(), Uploader: uploader})
	d := testDraft()
	d.MediaURL = "https://roadwatch-media.s3.ap-south-1.amazonaws.com/reports/a.jpg"
	d.MediaStored = true

	res, err := p.Submit(context.Background(), d, div)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if uploader.calls != 0 {
		t.Errorf("uploader calls = %d, want 0 for durable media", uploader.calls)
	}
	if res.Report.MediaURL != d.MediaURL {
		t.Errorf("persisted media = %q, want original durable URL", res.Report.MediaURL)
	}
}

func TestSubmitDraftWithoutMediaSkipsUploader(t *testing.T) {
	db := openPipelineTestDB(t)
	div := seedDivision(t, db, 1)
	uploader := &fakeUploader{err: errors.New("must not be called")}

	p, _ := NewPipeline(PipelineOpts{DB: db, Notifier: newFakeNotifier(), Uploader: uploader})
	if _, err := p.Submit(context.Background(), testDraft(), div); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if uploader.calls != 0 {
		t.Errorf("uploader calls = %d, want 0", uploader.calls)
	}
}

func TestSubmitRequiresDivision(t *testing.T) {
	db := openPipelineTestDB(t)
	p, _ := NewPipeline(PipelineOpts{DB: db, Notifier: newFakeNotifier()})
	if _, err := p.Submit(context.Background(), testDraft(), nil); err == nil {
		t.Fatal("Submit with nil division succeeded")
	}
}

func TestNewPipelineValidation(t *testing.T) {
	db := openPipelineTestDB(t)
	if _, err := NewPipeline(PipelineOpts{Notifier: newFakeNotifier()}); err == nil {
		t.Error("missing db accepted")
	}
	if _, err := NewPipeline(PipelineOpts{DB: db}); err == nil {
		t.Error("missing notifier accepted")
	}
}
