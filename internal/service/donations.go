package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/notify"
)

// OrderIterator pages through every order of the event. *provider.PretixClient
// satisfies it.
type OrderIterator interface {
	EachOrder(ctx context.Context, fn func(domain.Order) error) error
}

// ChannelPoster posts and deletes channel messages. *provider.DiscordClient satisfies it.
type ChannelPoster interface {
	PostMessage(ctx context.Context, channelID, content string) ([]string, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Tier is the number of donors who gave a given amount.
type Tier struct {
	Amount float64
	Count  int
}

// DonationSummary aggregates confirmed payments.
type DonationSummary struct {
	// Total sums every confirmed payment with a positive amount.
	Total float64
	// Donors counts distinct order emails.
	Donors int
	// Tiers groups donors by their last confirmed amount, highest amount first.
	Tiers []Tier
}

// DonationsConfig configures the announcement.
type DonationsConfig struct {
	ChannelID string
	DonateURL string
	Currency  string
	Timeout   time.Duration
}

// DonationsService posts a running donations summary to a channel, replacing the
// previous announcement each time.
type DonationsService struct {
	orders OrderIterator
	chat   ChannelPoster
	cfg    DonationsConfig
	audit  notify.Sink
	logger *slog.Logger

	mu           sync.Mutex
	lastMessages []string
}

// NewDonationsService creates a DonationsService. audit may be nil.
func NewDonationsService(orders OrderIterator, chat ChannelPoster, cfg DonationsConfig, audit notify.Sink, logger *slog.Logger) *DonationsService {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &DonationsService{orders: orders, chat: chat, cfg: cfg, audit: audit, logger: logger}
}

// Summarize fetches all orders and aggregates confirmed donations.
func (s *DonationsService) Summarize(ctx context.Context) (DonationSummary, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var total float64
	donors := make(map[string]float64)
	err := s.orders.EachOrder(ctx, func(o domain.Order) error {
		for _, p := range o.Payments {
			if !p.Confirmed() {
				continue
			}
			amount, err := p.AmountValue()
			if err != nil {
				s.logger.Warn("skipping payment with bad amount", "order", o.Code, "error", err)
				continue
			}
			if amount <= 0 {
				continue
			}
			donors[o.Email] = amount
			total += amount
		}
		return nil
	})
	if err != nil {
		return DonationSummary{}, fmt.Errorf("summarize donations: %w", err)
	}

	return DonationSummary{Total: total, Donors: len(donors), Tiers: tiers(donors)}, nil
}

func tiers(donors map[string]float64) []Tier {
	counts := make(map[float64]int)
	for _, amount := range donors {
		counts[amount]++
	}
	out := make([]Tier, 0, len(counts))
	for amount, n := range counts {
		out = append(out, Tier{Amount: amount, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return out
}

var medals = []string{"🥇", "🥈", "🥉"}

// Render formats the summary as a markdown message.
func (s *DonationsService) Render(sum DonationSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n\n## Number of donations per amount\n\n", formatAmount(sum.Total), s.cfg.Currency)
	for i, t := range sum.Tiers {
		who := "people"
		if t.Count == 1 {
			who = "person"
		}
		if i < len(medals) {
			who += " " + medals[i]
		}
		fmt.Fprintf(&b, "- **$ %d %s** (%d %s)\n", int(t.Amount), s.cfg.Currency, t.Count, who)
	}
	if s.cfg.DonateURL != "" {
		fmt.Fprintf(&b, "\n### ❤️ Donate now %s", s.cfg.DonateURL)
	}
	return b.String()
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

// Announce posts the current summary and deletes the previous announcement. Nothing is
// posted when fetching fails or no donation has been confirmed yet.
func (s *DonationsService) Announce(ctx context.Context) error {
	sum, err := s.Summarize(ctx)
	if err != nil {
		return err
	}
	if sum.Total <= 0 {
		s.logger.Info("no confirmed donations yet")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.lastMessages {
		if err := s.chat.DeleteMessage(ctx, s.cfg.ChannelID, id); err != nil {
			s.logger.Warn("delete previous donations announcement", "message_id", id, "error", err)
		}
	}
	s.lastMessages = nil

	ids, err := s.chat.PostMessage(ctx, s.cfg.ChannelID, s.Render(sum))
	s.lastMessages = ids
	if err != nil {
		return fmt.Errorf("post donations announcement: %w", err)
	}

	if s.audit != nil {
		if err := s.audit.Publish(ctx, domain.NewDonationsAnnouncedEvent(sum.Total, sum.Donors)); err != nil {
			s.logger.Error("publish audit event", "error", err)
		}
	}
	s.logger.Info("donations announced", "total", sum.Total, "donors", sum.Donors)
	return nil
}

// Run announces every interval until ctx is done. Errors are logged and the loop
// continues.
func (s *DonationsService) Run(ctx context.Context, interval time.Duration) error {
	s.logger.Info("donations announcer starting", "channel_id", s.cfg.ChannelID, "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Announce(ctx); err != nil {
			s.logger.Error("donations announcement error", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("donations announcer stopped")
			return nil
		case <-ticker.C:
		}
	}
}
