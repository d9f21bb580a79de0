package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pyladiescon/confops/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func donationOrders() *fakeOrders {
	return &fakeOrders{orders: []domain.Order{
		{Code: "D1", Email: "a@example.com", Payments: []domain.Payment{{Amount: "50.00", State: domain.PaymentConfirmed}}},
		{Code: "D2", Email: "b@example.com", Payments: []domain.Payment{{Amount: "25.00", State: domain.PaymentConfirmed}}},
		{Code: "D3", Email: "c@example.com", Payments: []domain.Payment{{Amount: "25.00", State: domain.PaymentConfirmed}}},
		{Code: "D4", Email: "d@example.com", Payments: []domain.Payment{{Amount: "100.00", State: domain.PaymentPending}}},
		{Code: "D5", Email: "e@example.com", Payments: []domain.Payment{{Amount: "0.00", State: domain.PaymentConfirmed}}},
	}}
}

// --- DonationsService Tests ---

func TestSummarize(t *testing.T) {
	svc := NewDonationsService(donationOrders(), &fakeChannel{}, DonationsConfig{}, nil, discardLogger())

	sum, err := svc.Summarize(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 100.0, sum.Total, 0.001)
	assert.Equal(t, 3, sum.Donors)
	assert.Equal(t, []Tier{{Amount: 50, Count: 1}, {Amount: 25, Count: 2}}, sum.Tiers)
}

func TestSummarize_LastAmountPerDonorWins(t *testing.T) {
	orders := &fakeOrders{orders: []domain.Order{
		{Code: "D1", Email: "a@example.com", Payments: []domain.Payment{{Amount: "10", State: domain.PaymentConfirmed}}},
		{Code: "D2", Email: "a@example.com", Payments: []domain.Payment{{Amount: "20", State: domain.PaymentConfirmed}}},
	}}
	svc := NewDonationsService(orders, &fakeChannel{}, DonationsConfig{}, nil, discardLogger())

	sum, err := svc.Summarize(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 30.0, sum.Total, 0.001)
	assert.Equal(t, 1, sum.Donors)
	assert.Equal(t, []Tier{{Amount: 20, Count: 1}}, sum.Tiers)
}

func TestRender(t *testing.T) {
	svc := NewDonationsService(nil, nil, DonationsConfig{DonateURL: "https://donate.example"}, nil, discardLogger())

	got := svc.Render(DonationSummary{Total: 100, Donors: 3, Tiers: []Tier{{50, 1}, {25, 2}}})

	assert.Equal(t, "# 100 USD\n\n## Number of donations per amount\n\n"+
		"- **$ 50 USD** (1 person 🥇)\n"+
		"- **$ 25 USD** (2 people 🥈)\n"+
		"\n### ❤️ Donate now https://donate.example", got)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "100", formatAmount(100))
	assert.Equal(t, "12.50", formatAmount(12.5))
}

func TestAnnounce_ReplacesPreviousMessage(t *testing.T) {
	chat := &fakeChannel{}
	audit := &recordingSink{}
	svc := NewDonationsService(donationOrders(), chat, DonationsConfig{ChannelID: "don"}, audit, discardLogger())
	ctx := context.Background()

	require.NoError(t, svc.Announce(ctx))
	require.NoError(t, svc.Announce(ctx))

	assert.Len(t, chat.posts, 2)
	assert.Equal(t, []string{"a"}, chat.deleted)
	assert.Equal(t, []domain.EventType{domain.EventDonationsAnnounced, domain.EventDonationsAnnounced}, audit.types())
}

func TestAnnounce_NothingToPost(t *testing.T) {
	t.Run("no confirmed donations", func(t *testing.T) {
		chat := &fakeChannel{}
		svc := NewDonationsService(&fakeOrders{}, chat, DonationsConfig{}, nil, discardLogger())
		require.NoError(t, svc.Announce(context.Background()))
		assert.Empty(t, chat.posts)
	})

	t.Run("fetch error", func(t *testing.T) {
		chat := &fakeChannel{}
		svc := NewDonationsService(&fakeOrders{err: errors.New("pretix down")}, chat, DonationsConfig{}, nil, discardLogger())
		err := svc.Announce(context.Background())
		require.Error(t, err)
		assert.Empty(t, chat.posts)
	})
}

func TestAnnounce_PostError(t *testing.T) {
	chat := &fakeChannel{postErr: errors.New("rate limited")}
	svc := NewDonationsService(donationOrders(), chat, DonationsConfig{}, nil, discardLogger())

	err := svc.Announce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post donations announcement")
}

func TestDonationsRun_StopsOnCancel(t *testing.T) {
	chat := &fakeChannel{}
	svc := NewDonationsService(donationOrders(), chat, DonationsConfig{}, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, svc.Run(ctx, time.Hour))
	assert.Len(t, chat.posts, 1, "runs once before waiting")
}
