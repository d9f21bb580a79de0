package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/ledger"
)

// SendOutcome is the result of a SendOnce call that did not fail.
type SendOutcome int

const (
	Sent SendOutcome = iota + 1
	AlreadySent
)

func (o SendOutcome) String() string {
	switch o {
	case Sent:
		return "sent"
	case AlreadySent:
		return "already_sent"
	default:
		return "unknown"
	}
}

// SendFunc performs the side effect being guarded, e.g. emailing a certificate.
type SendFunc func(ctx context.Context) error

// SendOnceGuard performs a side effect at most once per key. The key is recorded only
// after the side effect succeeds, so a failed send can be retried by a later run.
type SendOnceGuard struct {
	ledger ledger.Ledger
	locks  *KeyedMutex
}

// NewSendOnce creates a guard backed by the given ledger.
func NewSendOnce(l ledger.Ledger) *SendOnceGuard {
	return &SendOnceGuard{ledger: l, locks: NewKeyedMutex()}
}

// SendOnce checks the ledger for key, invokes send only if absent, and records key once
// send returns nil. Check, send and record run under a per-key lock.
//
// A failure to record after a successful send is returned as an error together with
// Sent; the caller must not retry the send.
func (g *SendOnceGuard) SendOnce(ctx context.Context, key string, send SendFunc) (SendOutcome, error) {
	unlock := g.locks.Lock(key)
	defer unlock()

	recorded, err := g.ledger.IsRecorded(ctx, key)
	if err != nil {
		return 0, domain.NewIntegrationError("ledger", err)
	}
	if recorded {
		return AlreadySent, nil
	}

	if err := send(ctx); err != nil {
		return 0, fmt.Errorf("send %s: %w", key, err)
	}

	if err := g.ledger.Record(ctx, key); err != nil {
		if errors.Is(err, domain.ErrDuplicateWrite) {
			return Sent, err
		}
		return Sent, domain.NewIntegrationError("ledger", err)
	}
	return Sent, nil
}

// Check reports whether key may still be sent, without sending.
func (g *SendOnceGuard) Check(ctx context.Context, key string) (domain.GuardResult, error) {
	recorded, err := g.ledger.IsRecorded(ctx, key)
	if err != nil {
		return domain.GuardResult{}, domain.NewIntegrationError("ledger", err)
	}
	if recorded {
		return domain.GuardResult{
			Allowed: false,
			Reason:  "already sent: " + key,
			Guard:   "send_once",
		}, nil
	}
	return domain.GuardResult{Allowed: true}, nil
}
