package service

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pyladiescon/confops/internal/domain"
)

// NamePlaceholder is replaced with the recipient's name in certificate templates.
const NamePlaceholder = "PERSON_NAME"

// certificateSubject is one certificate: its file and ledger key, and who it is for.
type certificateSubject struct {
	Key   string
	Name  string
	Email string
}

// eligibleAttendees lists every position of an eligible order whose item is in items.
func eligibleAttendees(ctx context.Context, orders OrderIterator, items []int64) ([]certificateSubject, error) {
	var out []certificateSubject
	err := orders.EachOrder(ctx, func(o domain.Order) error {
		if !Eligible(o) {
			return nil
		}
		for _, p := range o.Positions {
			if slices.Contains(items, p.Item) {
				out = append(out, certificateSubject{Key: o.Key(p), Name: p.AttendeeName, Email: p.AttendeeEmail})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

func recipientSubjects(recipients []Recipient) []certificateSubject {
	out := make([]certificateSubject, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, certificateSubject{Key: r.Key(), Name: r.Name, Email: r.Email})
	}
	return out
}

// Converter renders an SVG file to PDF.
type Converter interface {
	Convert(ctx context.Context, svgPath, pdfPath string) error
}

// InkscapeConverter converts with the inkscape command line.
type InkscapeConverter struct {
	// Binary defaults to "inkscape" on PATH.
	Binary string
}

// Convert exports the drawing area of svgPath to pdfPath.
func (c InkscapeConverter) Convert(ctx context.Context, svgPath, pdfPath string) error {
	bin := c.Binary
	if bin == "" {
		bin = "inkscape"
	}
	cmd := exec.CommandContext(ctx, bin, svgPath,
		"--export-area-drawing", "--batch-process", "--export-type=pdf", "--export-filename="+pdfPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("inkscape %s: %w: %s", svgPath, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// GenerateReport counts the results of a generation run.
type GenerateReport struct {
	Generated int
	Existing  int
	Failed    int
	// Duplicates counts names that appear under more than one key.
	Duplicates int
}

// Add accumulates the counts of o.
func (r *GenerateReport) Add(o GenerateReport) {
	r.Generated += o.Generated
	r.Existing += o.Existing
	r.Failed += o.Failed
	r.Duplicates += o.Duplicates
}

// CertificateGenerator writes one SVG and PDF per certificate into the directory that
// CertificateService attaches from, both named after the ledger key.
type CertificateGenerator struct {
	orders    OrderIterator
	converter Converter
	template  string
	dir       string
	items     []int64
	logger    *slog.Logger
}

// NewCertificateGenerator creates a generator from an SVG template containing
// NamePlaceholder.
func NewCertificateGenerator(orders OrderIterator, converter Converter, template []byte, dir string, items []int64, logger *slog.Logger) (*CertificateGenerator, error) {
	if !strings.Contains(string(template), NamePlaceholder) {
		return nil, fmt.Errorf("certificate template has no %s placeholder", NamePlaceholder)
	}
	return &CertificateGenerator{
		orders:    orders,
		converter: converter,
		template:  string(template),
		dir:       dir,
		items:     items,
		logger:    logger,
	}, nil
}

// GenerateAll renders a certificate for every eligible attendee.
func (g *CertificateGenerator) GenerateAll(ctx context.Context) (GenerateReport, error) {
	subjects, err := eligibleAttendees(ctx, g.orders, g.items)
	if err != nil {
		return GenerateReport{}, err
	}
	return g.generate(ctx, subjects)
}

// GenerateExtra renders certificates for contributors listed outside the ticketing
// platform.
func (g *CertificateGenerator) GenerateExtra(ctx context.Context, recipients []Recipient) (GenerateReport, error) {
	return g.generate(ctx, recipientSubjects(recipients))
}

func (g *CertificateGenerator) generate(ctx context.Context, subjects []certificateSubject) (GenerateReport, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return GenerateReport{}, fmt.Errorf("create certificate dir: %w", err)
	}

	var report GenerateReport
	byName := make(map[string]string)
	for _, s := range subjects {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if first, ok := byName[s.Name]; ok && first != s.Key {
			g.logger.Warn("repeated certificate name", "name", s.Name, "key", s.Key, "first_key", first)
			report.Duplicates++
		} else if !ok {
			byName[s.Name] = s.Key
		}

		switch err := g.render(ctx, s); {
		case errors.Is(err, errCertificateExists):
			report.Existing++
		case err != nil:
			g.logger.Error("generate certificate", "key", s.Key, "error", err)
			report.Failed++
		default:
			report.Generated++
		}
	}

	g.logger.Info("certificate generation finished",
		"generated", report.Generated, "existing", report.Existing,
		"failed", report.Failed, "duplicates", report.Duplicates)
	return report, nil
}

var errCertificateExists = errors.New("certificate already generated")

func (g *CertificateGenerator) render(ctx context.Context, s certificateSubject) error {
	svgPath := filepath.Join(g.dir, s.Key+".svg")
	pdfPath := filepath.Join(g.dir, s.Key+".pdf")
	if exists(svgPath) && exists(pdfPath) {
		return errCertificateExists
	}

	var name strings.Builder
	if err := xml.EscapeText(&name, []byte(s.Name)); err != nil {
		return fmt.Errorf("escape name: %w", err)
	}
	content := strings.ReplaceAll(g.template, NamePlaceholder, name.String())
	if err := os.WriteFile(svgPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return g.converter.Convert(ctx, svgPath, pdfPath)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
