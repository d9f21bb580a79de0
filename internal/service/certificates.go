package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/guard"
	"github.com/pyladiescon/confops/internal/infra"
	"github.com/pyladiescon/confops/internal/notify"
	"github.com/pyladiescon/confops/internal/provider"
)

// Mailer sends an email. *provider.GmailClient satisfies it.
type Mailer interface {
	Send(ctx context.Context, e provider.Email) (string, error)
}

// CertificateConfig configures certificate issuance.
type CertificateConfig struct {
	// Dir holds one PDF per ledger key, named "<key>.pdf".
	Dir             string
	ItemIDs         []int64
	SenderName      string
	SenderEmail     string
	ConferenceName  string
	ConferenceDates string
	// DryRun reports what would be sent without sending or recording anything.
	DryRun bool
}

// Recipient is a contributor (volunteer, speaker, ...) listed outside the ticketing
// platform.
type Recipient struct {
	Name  string
	Email string
	Role  string
}

// Key returns the ledger key of the recipient.
func (r Recipient) Key() string {
	return r.Role + "-" + r.Name
}

// Report counts the results of an issuance run. In a dry run Sent counts the emails
// that would have been sent.
type Report struct {
	Sent        int
	AlreadySent int
	Skipped     int
	Failed      int
	DryRun      bool
}

// Add accumulates the counts of o.
func (r *Report) Add(o Report) {
	r.Sent += o.Sent
	r.AlreadySent += o.AlreadySent
	r.Skipped += o.Skipped
	r.Failed += o.Failed
}

// CertificateService emails participation certificates at most once per recipient key.
type CertificateService struct {
	orders  OrderIterator
	mailer  Mailer
	guard   *guard.SendOnceGuard
	cfg     CertificateConfig
	audit   notify.Sink
	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewCertificateService creates a CertificateService. audit and metrics may be nil.
func NewCertificateService(orders OrderIterator, mailer Mailer, sendOnce *guard.SendOnceGuard, cfg CertificateConfig, audit notify.Sink, metrics *infra.Metrics, logger *slog.Logger) *CertificateService {
	return &CertificateService{
		orders:  orders,
		mailer:  mailer,
		guard:   sendOnce,
		cfg:     cfg,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
	}
}

type certificateJob struct {
	key       string
	recipient string
	data      certificateData
	subject   string
	templates templatePair
}

// Eligible reports whether the order's positions can receive certificates: the order is
// not a test order and has a confirmed payment.
func Eligible(o domain.Order) bool {
	return !o.TestMode && o.HasConfirmedPayment()
}

// IssueAll sends a certificate to every attendee with an eligible ticket.
func (s *CertificateService) IssueAll(ctx context.Context) (Report, error) {
	subjects, err := eligibleAttendees(ctx, s.orders, s.cfg.ItemIDs)
	if err != nil {
		return Report{DryRun: s.cfg.DryRun}, err
	}
	jobs := make([]certificateJob, 0, len(subjects))
	for _, sub := range subjects {
		jobs = append(jobs, certificateJob{
			key:       sub.Key,
			recipient: sub.Email,
			data:      s.data(sub.Name, ""),
			subject:   "Certificate of Attendance and Post-Conference Survey",
			templates: attendeeTemplates,
		})
	}
	return s.run(ctx, jobs)
}

// IssueExtra sends certificates to contributors listed outside the ticketing platform.
func (s *CertificateService) IssueExtra(ctx context.Context, recipients []Recipient) (Report, error) {
	jobs := make([]certificateJob, 0, len(recipients))
	for i, sub := range recipientSubjects(recipients) {
		role := recipients[i].Role
		jobs = append(jobs, certificateJob{
			key:       sub.Key,
			recipient: sub.Email,
			data:      s.data(sub.Name, role),
			subject:   fmt.Sprintf("Thank you for being a %s at PyLadiesCon", role),
			templates: contributorTemplates,
		})
	}
	return s.run(ctx, jobs)
}

func (s *CertificateService) data(name, role string) certificateData {
	return certificateData{Name: name, Role: role, Conference: s.cfg.ConferenceName, Dates: s.cfg.ConferenceDates}
}

func (s *CertificateService) run(ctx context.Context, jobs []certificateJob) (Report, error) {
	report := Report{DryRun: s.cfg.DryRun}
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r := s.issue(ctx, job)
		report.Add(r)
	}
	s.logger.Info("certificate run finished",
		"sent", report.Sent, "already_sent", report.AlreadySent,
		"skipped", report.Skipped, "failed", report.Failed, "dry_run", report.DryRun)
	return report, nil
}

func (s *CertificateService) issue(ctx context.Context, job certificateJob) Report {
	log := s.logger.With("key", job.key, "recipient", job.recipient)

	if err := domain.ValidateEmail(job.recipient); err != nil {
		log.Warn("skipping certificate, bad recipient address", "error", err)
		s.count("skipped")
		return Report{Skipped: 1}
	}

	res, err := s.guard.Check(ctx, job.key)
	if err != nil {
		log.Error("check certificate ledger", "error", err)
		s.count("failed")
		return Report{Failed: 1}
	}
	if !res.Allowed {
		log.Warn("certificate already sent, skipping")
		s.count("already_sent")
		return Report{AlreadySent: 1}
	}

	pdfPath := filepath.Join(s.cfg.Dir, job.key+".pdf")
	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Error("no certificate file", "path", pdfPath)
			s.publish(ctx, domain.NewCertificateEvent(job.key, job.recipient, fmt.Errorf("no certificate file %s", pdfPath)))
		} else {
			log.Error("read certificate file", "path", pdfPath, "error", err)
		}
		s.count("skipped")
		return Report{Skipped: 1}
	}

	text, html, err := job.templates.render(job.data)
	if err != nil {
		log.Error("render certificate email", "error", err)
		s.count("failed")
		return Report{Failed: 1}
	}

	email := provider.Email{
		FromName:    s.cfg.SenderName,
		FromAddress: s.cfg.SenderEmail,
		To:          []string{job.recipient},
		Subject:     job.subject,
		Text:        text,
		HTML:        html,
		Attachments: []provider.Attachment{{
			Filename:    job.key + ".pdf",
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	}

	if s.cfg.DryRun {
		log.Info("dry run: would send certificate", "subject", job.subject)
		return Report{Sent: 1}
	}

	outcome, err := s.guard.SendOnce(ctx, job.key, func(ctx context.Context) error {
		_, err := s.mailer.Send(ctx, email)
		return err
	})
	switch {
	case err != nil && outcome == guard.Sent:
		// Mail went out but the ledger write failed; a rerun would send it again.
		log.Error("certificate sent but not recorded", "error", err)
		s.publish(ctx, domain.NewCertificateEvent(job.key, job.recipient, err))
		s.count("unrecorded")
		return Report{Sent: 1, Failed: 1}
	case err != nil:
		log.Error("send certificate", "error", err)
		s.publish(ctx, domain.NewCertificateEvent(job.key, job.recipient, err))
		s.count("failed")
		return Report{Failed: 1}
	case outcome == guard.AlreadySent:
		log.Warn("certificate already sent, skipping")
		s.count("already_sent")
		return Report{AlreadySent: 1}
	default:
		log.Info("certificate sent")
		s.publish(ctx, domain.NewCertificateEvent(job.key, job.recipient, nil))
		s.count("sent")
		return Report{Sent: 1}
	}
}

func (s *CertificateService) count(result string) {
	if s.metrics != nil {
		s.metrics.CertificateSends.WithLabelValues(result).Inc()
	}
}

func (s *CertificateService) publish(ctx context.Context, event domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Publish(ctx, event); err != nil {
		s.logger.Error("publish audit event", "event_type", event.EventType, "error", err)
	}
}

// ReadRecipients parses a CSV with a header row naming at least the columns name, email
// and role, in any order and case.
func ReadRecipients(r io.Reader) ([]Recipient, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read recipients header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"name", "email", "role"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("recipients csv: missing column %q", required)
		}
	}

	var out []Recipient
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("recipients csv line %d: %w", line, err)
		}
		r := Recipient{
			Name:  strings.TrimSpace(rec[cols["name"]]),
			Email: strings.TrimSpace(rec[cols["email"]]),
			Role:  strings.TrimSpace(rec[cols["role"]]),
		}
		if r.Name == "" && r.Email == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
