package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/guard"
	"github.com/pyladiescon/confops/internal/infra"
	"github.com/pyladiescon/confops/internal/ledger"
	"github.com/pyladiescon/confops/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []provider.Email
	err  error
}

func (f *fakeMailer) Send(_ context.Context, e provider.Email) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, e)
	return "msg-id", nil
}

type certHarness struct {
	svc     *CertificateService
	mailer  *fakeMailer
	ledger  *ledger.MemoryLedger
	audit   *recordingSink
	metrics *infra.Metrics
	dir     string
}

func newCertHarness(t *testing.T, orders *fakeOrders, dryRun bool, keys ...string) *certHarness {
	t.Helper()
	h := &certHarness{
		mailer:  &fakeMailer{},
		ledger:  ledger.NewMemory(keys...),
		audit:   &recordingSink{},
		metrics: infra.NewMetrics(prometheus.NewRegistry()),
		dir:     t.TempDir(),
	}
	cfg := CertificateConfig{
		Dir:             h.dir,
		ItemIDs:         []int64{609703},
		SenderName:      "Organizers",
		SenderEmail:     "org@example.com",
		ConferenceName:  "PyLadiesCon 2024",
		ConferenceDates: "December 6th-December 8th, 2024",
		DryRun:          dryRun,
	}
	h.svc = NewCertificateService(orders, h.mailer, guard.NewSendOnce(h.ledger), cfg, h.audit, h.metrics, discardLogger())
	return h
}

func (h *certHarness) writePDF(t *testing.T, key string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, key+".pdf"), []byte("%PDF-1.4 "+key), 0o644))
}

func certificateOrders() *fakeOrders {
	confirmed := []domain.Payment{{Amount: "10.00", State: domain.PaymentConfirmed}}
	return &fakeOrders{orders: []domain.Order{
		{Code: "ABC12", Payments: confirmed, Positions: []domain.Position{
			{PositionID: 1, Item: 609703, AttendeeName: "Jane Doe", AttendeeEmail: "jane@example.com"},
			{PositionID: 2, Item: 999, AttendeeName: "Jane Doe", AttendeeEmail: "jane@example.com"},
		}},
		{Code: "TEST1", TestMode: true, Payments: confirmed, Positions: []domain.Position{
			{PositionID: 1, Item: 609703, AttendeeName: "Test", AttendeeEmail: "test@example.com"},
		}},
		{Code: "UNPAID", Payments: []domain.Payment{{Amount: "10.00", State: domain.PaymentPending}}, Positions: []domain.Position{
			{PositionID: 1, Item: 609703, AttendeeName: "Unpaid", AttendeeEmail: "unpaid@example.com"},
		}},
	}}
}

// --- CertificateService Tests ---

func TestIssueAll_SendsOncePerKey(t *testing.T) {
	h := newCertHarness(t, certificateOrders(), false)
	h.writePDF(t, "ABC12-1")
	ctx := context.Background()

	report, err := h.svc.IssueAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{Sent: 1}, report)

	require.Len(t, h.mailer.sent, 1)
	email := h.mailer.sent[0]
	assert.Equal(t, []string{"jane@example.com"}, email.To)
	assert.Equal(t, "org@example.com", email.FromAddress)
	assert.Contains(t, email.Text, "Dear Jane Doe,")
	assert.Contains(t, email.HTML, "December 6th-December 8th, 2024")
	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "ABC12-1.pdf", email.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", email.Attachments[0].ContentType)

	ok, err := h.ledger.IsRecorded(ctx, "ABC12-1")
	require.NoError(t, err)
	assert.True(t, ok)

	report, err = h.svc.IssueAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{AlreadySent: 1}, report)
	assert.Len(t, h.mailer.sent, 1, "second run must not resend")

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CertificateSends.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CertificateSends.WithLabelValues("already_sent")))
}

func TestIssueAll_MissingFileSkipped(t *testing.T) {
	h := newCertHarness(t, certificateOrders(), false)

	report, err := h.svc.IssueAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Skipped: 1}, report)
	assert.Empty(t, h.mailer.sent)
	assert.Equal(t, 0, h.ledger.Len())
	assert.Equal(t, []domain.EventType{domain.EventCertificateFailed}, h.audit.types())
}

func TestIssueAll_RecordedWithoutFileIsAlreadySent(t *testing.T) {
	h := newCertHarness(t, certificateOrders(), false, "ABC12-1")

	report, err := h.svc.IssueAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{AlreadySent: 1}, report)
	assert.Empty(t, h.mailer.sent)
	assert.Empty(t, h.audit.types())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CertificateSends.WithLabelValues("already_sent")))
}

func TestIssueAll_SendFailureNotRecorded(t *testing.T) {
	h := newCertHarness(t, certificateOrders(), false)
	h.writePDF(t, "ABC12-1")
	h.mailer.err = errors.New("quota exceeded")

	report, err := h.svc.IssueAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Failed: 1}, report)
	assert.Equal(t, 0, h.ledger.Len(), "failed sends stay eligible for a retry")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CertificateSends.WithLabelValues("failed")))
}

func TestIssueAll_DryRun(t *testing.T) {
	h := newCertHarness(t, certificateOrders(), true)
	h.writePDF(t, "ABC12-1")

	report, err := h.svc.IssueAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Sent: 1, DryRun: true}, report)
	assert.Empty(t, h.mailer.sent)
	assert.Equal(t, 0, h.ledger.Len())
}

func TestIssueAll_DryRunReportsAlreadySent(t *testing.T) {
	h := newCertHarness(t, certificateOrders(), true, "ABC12-1")
	h.writePDF(t, "ABC12-1")

	report, err := h.svc.IssueAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{AlreadySent: 1, DryRun: true}, report)
}

func TestIssueAll_ListError(t *testing.T) {
	h := newCertHarness(t, &fakeOrders{err: errors.New("401")}, false)
	_, err := h.svc.IssueAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list orders")
}

func TestIssueExtra(t *testing.T) {
	h := newCertHarness(t, &fakeOrders{}, false, "Speaker-Ann")
	h.writePDF(t, "Volunteer-Bob")
	h.writePDF(t, "Speaker-Ann")

	report, err := h.svc.IssueExtra(context.Background(), []Recipient{
		{Name: "Bob", Email: "bob@example.com", Role: "Volunteer"},
		{Name: "Ann", Email: "ann@example.com", Role: "Speaker"},
		{Name: "Eve", Email: "not-an-email", Role: "Speaker"},
	})
	require.NoError(t, err)
	assert.Equal(t, Report{Sent: 1, AlreadySent: 1, Skipped: 1}, report)

	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, "Thank you for being a Volunteer at PyLadiesCon", h.mailer.sent[0].Subject)
	assert.Contains(t, h.mailer.sent[0].Text, "Thank you for being a Volunteer at PyLadiesCon 2024.")
}

func TestIssue_StopsOnCancel(t *testing.T) {
	h := newCertHarness(t, certificateOrders(), false)
	h.writePDF(t, "ABC12-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.IssueAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.mailer.sent)
}

func TestEligible(t *testing.T) {
	paid := []domain.Payment{{State: domain.PaymentConfirmed}}
	assert.True(t, Eligible(domain.Order{Payments: paid}))
	assert.False(t, Eligible(domain.Order{Payments: paid, TestMode: true}))
	assert.False(t, Eligible(domain.Order{}))
}

// --- Recipients Tests ---

func TestReadRecipients(t *testing.T) {
	in := "Email,Name,Role\nbob@example.com, Bob ,Volunteer\n,,\nann@example.com,Ann,Speaker\n"

	got, err := ReadRecipients(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Recipient{
		{Name: "Bob", Email: "bob@example.com", Role: "Volunteer"},
		{Name: "Ann", Email: "ann@example.com", Role: "Speaker"},
	}, got)
	assert.Equal(t, "Volunteer-Bob", got[0].Key())
}

func TestReadRecipients_MissingColumn(t *testing.T) {
	_, err := ReadRecipients(strings.NewReader("name,email\nBob,bob@example.com\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "role"`)
}

// --- Template Tests ---

func TestContributorHTMLEscapesName(t *testing.T) {
	_, html, err := contributorTemplates.render(certificateData{Name: "<b>Bob</b>", Role: "Speaker"})
	require.NoError(t, err)
	assert.Contains(t, html, "&lt;b&gt;Bob&lt;/b&gt;")
}
