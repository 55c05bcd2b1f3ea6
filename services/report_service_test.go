package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/Dosada05/court-booking-bot/storage"
)

type fakeUploader struct {
	lastKey         string
	lastContentType string
	lastBody        []byte
	failUpload      error
}

func (u *fakeUploader) Upload(_ context.Context, key, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	if u.failUpload != nil {
		return nil, u.failUpload
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	u.lastKey = key
	u.lastContentType = contentType
	u.lastBody = body
	return &storage.UploadResult{Key: key, Location: "https://files.example.com/" + key}, nil
}

func (u *fakeUploader) Delete(context.Context, string) error { return nil }

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://files.example.com/" + key
}

func newReportFixture(t *testing.T, uploader storage.FileUploader) (*paymentFixture, *ReportService) {
	t.Helper()
	pf := newPaymentFixture(t)
	reports := NewReportService(pf.eventRepo, pf.payRepo, uploader, []byte("test-secret"))
	return pf, reports
}

func TestBuildAndUpload(t *testing.T) {
	uploader := &fakeUploader{}
	pf, reports := newReportFixture(t, uploader)
	ctx := context.Background()

	state := pf.alicePayment(t)
	if err := pf.payments.MarkPaid(ctx, pf.eventID, state.participantID); err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}

	report, err := reports.BuildAndUpload(ctx, pf.eventID)
	if err != nil {
		t.Fatalf("BuildAndUpload() error = %v", err)
	}
	if report.Key != uploader.lastKey {
		t.Errorf("report key = %q, uploaded key = %q", report.Key, uploader.lastKey)
	}
	if !strings.HasPrefix(report.Key, "reports/event-") || !strings.HasSuffix(report.Key, ".csv") {
		t.Errorf("unexpected report key %q", report.Key)
	}
	if uploader.lastContentType != "text/csv" {
		t.Errorf("content type = %q, want text/csv", uploader.lastContentType)
	}

	lines := strings.Split(strings.TrimSpace(string(uploader.lastBody)), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv has %d lines, want header plus two payments:\n%s", len(lines), uploader.lastBody)
	}
	if lines[0] != "participant,amount,paid,paid_at,reminders" {
		t.Errorf("csv header = %q", lines[0])
	}
	var paidRows, unpaidRows int
	for _, line := range lines[1:] {
		fields := strings.Split(line, ",")
		if len(fields) != 5 {
			t.Fatalf("csv row %q has %d fields, want 5", line, len(fields))
		}
		switch fields[2] {
		case "true":
			paidRows++
			if fields[3] == "" {
				t.Errorf("paid row %q has no paid_at", line)
			}
		case "false":
			unpaidRows++
			if fields[3] != "" {
				t.Errorf("unpaid row %q has a paid_at", line)
			}
		}
	}
	if paidRows != 1 || unpaidRows != 1 {
		t.Errorf("paid=%d unpaid=%d rows, want 1 and 1", paidRows, unpaidRows)
	}
}

func TestBuildAndUploadDisabled(t *testing.T) {
	_, reports := newReportFixture(t, nil)
	if reports.Enabled() {
		t.Error("Enabled() = true without an uploader")
	}
	pf := newPaymentFixture(t)
	reports = NewReportService(pf.eventRepo, pf.payRepo, nil, []byte("test-secret"))
	if _, err := reports.BuildAndUpload(context.Background(), pf.eventID); !errors.Is(err, ErrReportsDisabled) {
		t.Errorf("BuildAndUpload() error = %v, want ErrReportsDisabled", err)
	}
}

func TestBuildAndUploadRequiresFinalized(t *testing.T) {
	f := newFixture()
	id := f.announcedEvent(t, 1)
	reports := NewReportService(f.eventRepo, f.payRepo, &fakeUploader{}, []byte("test-secret"))

	_, err := reports.BuildAndUpload(context.Background(), id)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("BuildAndUpload() on announced event error = %v, want ErrInvalidTransition", err)
	}
}

func TestBuildAndUploadUnknownEvent(t *testing.T) {
	f := newFixture()
	reports := NewReportService(f.eventRepo, f.payRepo, &fakeUploader{}, []byte("test-secret"))

	_, err := reports.BuildAndUpload(context.Background(), 404)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("BuildAndUpload(404) error = %v, want ErrNotFound", err)
	}
}

func TestBuildAndUploadFailure(t *testing.T) {
	uploader := &fakeUploader{failUpload: errBoom}
	pf, reports := newReportFixture(t, uploader)

	_, err := reports.BuildAndUpload(context.Background(), pf.eventID)
	if !errors.Is(err, errBoom) {
		t.Errorf("BuildAndUpload() error = %v, want the upload error", err)
	}
}

func TestDownloadTokenRoundTrip(t *testing.T) {
	_, reports := newReportFixture(t, &fakeUploader{})

	token, err := reports.SignDownloadToken(7, "reports/event-7-abc.csv")
	if err != nil {
		t.Fatalf("SignDownloadToken() error = %v", err)
	}

	key, err := reports.VerifyDownloadToken(token, 7)
	if err != nil {
		t.Fatalf("VerifyDownloadToken() error = %v", err)
	}
	if key != "reports/event-7-abc.csv" {
		t.Errorf("verified key = %q", key)
	}
}

func TestDownloadTokenWrongEvent(t *testing.T) {
	_, reports := newReportFixture(t, &fakeUploader{})

	token, err := reports.SignDownloadToken(7, "reports/event-7-abc.csv")
	if err != nil {
		t.Fatalf("SignDownloadToken() error = %v", err)
	}
	if _, err := reports.VerifyDownloadToken(token, 8); !errors.Is(err, ErrForbidden) {
		t.Errorf("VerifyDownloadToken() for another event error = %v, want ErrForbidden", err)
	}
}

func TestDownloadTokenTampered(t *testing.T) {
	pf := newPaymentFixture(t)
	reports := NewReportService(pf.eventRepo, pf.payRepo, &fakeUploader{}, []byte("test-secret"))
	other := NewReportService(pf.eventRepo, pf.payRepo, &fakeUploader{}, []byte("other-secret"))

	token, err := other.SignDownloadToken(7, "reports/event-7-abc.csv")
	if err != nil {
		t.Fatalf("SignDownloadToken() error = %v", err)
	}
	if _, err := reports.VerifyDownloadToken(token, 7); !errors.Is(err, ErrForbidden) {
		t.Errorf("VerifyDownloadToken() with a foreign signature error = %v, want ErrForbidden", err)
	}

	if _, err := reports.VerifyDownloadToken("not-a-token", 7); !errors.Is(err, ErrForbidden) {
		t.Errorf("VerifyDownloadToken() of garbage error = %v, want ErrForbidden", err)
	}
}

func TestPublicURL(t *testing.T) {
	_, reports := newReportFixture(t, &fakeUploader{})
	if got := reports.PublicURL("reports/x.csv"); got != "https://files.example.com/reports/x.csv" {
		t.Errorf("PublicURL() = %q", got)
	}

	disabled := NewReportService(nil, nil, nil, nil)
	if got := disabled.PublicURL("reports/x.csv"); got != "" {
		t.Errorf("PublicURL() without storage = %q, want empty", got)
	}
}
