package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeConverter) Convert(_ context.Context, svgPath, pdfPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, filepath.Base(svgPath))
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644)
}

const certTemplate = `<svg><text>PERSON_NAME</text></svg>`

func newTestGenerator(t *testing.T, orders *fakeOrders, conv Converter) (*CertificateGenerator, string) {
	t.Helper()
	dir := t.TempDir()
	g, err := NewCertificateGenerator(orders, conv, []byte(certTemplate), dir, []int64{609703}, discardLogger())
	require.NoError(t, err)
	return g, dir
}

// --- CertificateGenerator Tests ---

func TestNewCertificateGenerator_RequiresPlaceholder(t *testing.T) {
	_, err := NewCertificateGenerator(&fakeOrders{}, &fakeConverter{}, []byte("<svg/>"), t.TempDir(), nil, discardLogger())
	assert.ErrorContains(t, err, NamePlaceholder)
}

func TestGenerateAll_EligibleAttendeesOnly(t *testing.T) {
	conv := &fakeConverter{}
	g, dir := newTestGenerator(t, certificateOrders(), conv)

	report, err := g.GenerateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, GenerateReport{Generated: 1}, report)
	assert.Equal(t, []string{"ABC12-1.svg"}, conv.calls)

	svg, err := os.ReadFile(filepath.Join(dir, "ABC12-1.svg"))
	require.NoError(t, err)
	assert.Equal(t, `<svg><text>Jane Doe</text></svg>`, string(svg))
}

func TestGenerateAll_SkipsExisting(t *testing.T) {
	conv := &fakeConverter{}
	g, _ := newTestGenerator(t, certificateOrders(), conv)
	ctx := context.Background()

	_, err := g.GenerateAll(ctx)
	require.NoError(t, err)

	report, err := g.GenerateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, GenerateReport{Existing: 1}, report)
	assert.Len(t, conv.calls, 1)
}

func TestGenerateExtra_EscapesAndFlagsDuplicates(t *testing.T) {
	conv := &fakeConverter{}
	g, dir := newTestGenerator(t, &fakeOrders{}, conv)

	report, err := g.GenerateExtra(context.Background(), []Recipient{
		{Name: "Ada & Grace", Email: "a@example.com", Role: "volunteer"},
		{Name: "Ada & Grace", Email: "a@example.com", Role: "speaker"},
	})
	require.NoError(t, err)
	assert.Equal(t, GenerateReport{Generated: 2, Duplicates: 1}, report)

	svg, err := os.ReadFile(filepath.Join(dir, "volunteer-Ada & Grace.svg"))
	require.NoError(t, err)
	assert.Contains(t, string(svg), "Ada &amp; Grace")
}

func TestGenerate_ConverterFailure(t *testing.T) {
	conv := &fakeConverter{err: errors.New("inkscape: not found")}
	g, dir := newTestGenerator(t, certificateOrders(), conv)

	report, err := g.GenerateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, GenerateReport{Failed: 1}, report)

	_, err = os.Stat(filepath.Join(dir, "ABC12-1.pdf"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestGeneratedFilesAreIssued(t *testing.T) {
	h := newCertHarness(t, certificateOrders(), false)
	g, err := NewCertificateGenerator(certificateOrders(), &fakeConverter{}, []byte(certTemplate), h.dir, []int64{609703}, discardLogger())
	require.NoError(t, err)

	_, err = g.GenerateAll(context.Background())
	require.NoError(t, err)

	report, err := h.svc.IssueAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Sent: 1}, report)
}
