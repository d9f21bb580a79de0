// Package reconcile matches a chat member's ticket claim against the ticketing platform
// and grants the mapped chat roles at most once per ticket.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/guard"
	"github.com/pyladiescon/confops/internal/infra"
	"github.com/pyladiescon/confops/internal/ledger"
)

// Integration operation names carried by domain.IntegrationError.
const (
	OpTicketSource = "ticket_source"
	OpNickname     = "set_nickname"
	OpGrantRoles   = "grant_roles"
	OpLedger       = "ledger"
)

// TicketSource returns the tickets of orderID whose attendee name equals name exactly.
type TicketSource interface {
	TicketsFor(ctx context.Context, orderID, name string) ([]domain.Ticket, error)
}

// RoleGranter adds roles to a chat member.
type RoleGranter interface {
	GrantRoles(ctx context.Context, userID string, roles []domain.RoleID) error
}

// Nicknamer changes a chat member's display name.
type Nicknamer interface {
	SetNickname(ctx context.Context, userID, nickname string) error
}

// RoleResolver maps a ticket to the roles it confers.
type RoleResolver interface {
	RolesFor(t domain.Ticket) domain.RoleSet
}

// Request is a single registration claim.
type Request struct {
	OrderID      string
	AttendeeName string
	// Identity is the chat user id receiving the roles.
	Identity string
}

// Kind enumerates the expected results of a reconciliation.
type Kind int

const (
	NotFound Kind = iota + 1
	AlreadyRegistered
	NoRoleMapping
	Registered
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case AlreadyRegistered:
		return "already_registered"
	case NoRoleMapping:
		return "no_role_mapping"
	case Registered:
		return "registered"
	default:
		return "unknown"
	}
}

// Outcome is the result of a reconciliation that did not fail.
type Outcome struct {
	Kind    Kind
	OrderID string
	Name    string
	// Tickets holds the deduplicated tickets that were considered.
	Tickets []domain.Ticket
	// Roles is set for Registered.
	Roles []domain.RoleID
	// Nickname is set for Registered when a Nicknamer is configured.
	Nickname string
}

// Deps are the collaborators of an Engine. Nicknamer and Metrics are optional.
type Deps struct {
	Tickets   TicketSource
	Roles     RoleResolver
	Granter   RoleGranter
	Nicknamer Nicknamer
	Ledger    ledger.Ledger
	Timeout   time.Duration
	Metrics   *infra.Metrics
	Logger    *slog.Logger
}

// Engine runs reconciliations. It is safe for concurrent use.
type Engine struct {
	tickets   TicketSource
	roles     RoleResolver
	granter   RoleGranter
	nicknamer Nicknamer
	ledger    ledger.Ledger
	locks     *guard.KeyedMutex
	timeout   time.Duration
	metrics   *infra.Metrics
	logger    *slog.Logger
}

// NewEngine creates an Engine. A zero Timeout defaults to 10s.
func NewEngine(d Deps) *Engine {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		tickets:   d.Tickets,
		roles:     d.Roles,
		granter:   d.Granter,
		nicknamer: d.Nicknamer,
		ledger:    d.Ledger,
		locks:     guard.NewKeyedMutex(),
		timeout:   timeout,
		metrics:   d.Metrics,
		logger:    logger,
	}
}

// Reconcile runs one registration claim.
//
// Steps:
//  1. Fetch tickets for (order, name); none -> NotFound
//  2. Deduplicate by ticket identity
//  3. Any ticket already recorded -> AlreadyRegistered
//  4. Union of mapped roles; empty -> NoRoleMapping
//  5. Set nickname, grant roles, record the first ticket -> Registered
//
// Steps 3 to 5 hold a per-order lock. Upstream failures are returned as
// *domain.IntegrationError; a ledger write rejected as a duplicate wraps
// domain.ErrDuplicateWrite.
func (e *Engine) Reconcile(ctx context.Context, req Request) (Outcome, error) {
	out, err := e.reconcile(ctx, req)
	e.observe(out, err)
	return out, err
}

func (e *Engine) reconcile(ctx context.Context, req Request) (Outcome, error) {
	out := Outcome{OrderID: req.OrderID, Name: req.AttendeeName}

	var tickets []domain.Ticket
	err := e.call(ctx, OpTicketSource, func(ctx context.Context) error {
		var err error
		tickets, err = e.tickets.TicketsFor(ctx, req.OrderID, req.AttendeeName)
		return err
	})
	if err != nil {
		return out, err
	}

	tickets = domain.DedupeTickets(tickets)
	out.Tickets = tickets
	if len(tickets) == 0 {
		out.Kind = NotFound
		return out, nil
	}

	unlock := e.locks.Lock(req.OrderID)
	defer unlock()

	for _, t := range tickets {
		recorded, err := e.ledger.IsRecorded(ctx, t.Identity())
		if err != nil {
			return out, domain.NewIntegrationError(OpLedger, err)
		}
		if recorded {
			out.Kind = AlreadyRegistered
			return out, nil
		}
	}

	roles := domain.NewRoleSet()
	for _, t := range tickets {
		roles.Union(e.roles.RolesFor(t))
	}
	if roles.Len() == 0 {
		out.Kind = NoRoleMapping
		return out, nil
	}
	granted := roles.Sorted()

	if e.nicknamer != nil {
		nick := domain.Nickname(tickets[0].AttendeeName)
		e.logger.Info("assigning nickname", "user_id", req.Identity, "nickname", nick)
		err := e.call(ctx, OpNickname, func(ctx context.Context) error {
			return e.nicknamer.SetNickname(ctx, req.Identity, nick)
		})
		if err != nil {
			return out, err
		}
		out.Nickname = nick
	}

	e.logger.Info("assigning roles", "user_id", req.Identity, "order_id", req.OrderID, "roles", roles.String())
	err = e.call(ctx, OpGrantRoles, func(ctx context.Context) error {
		return e.granter.GrantRoles(ctx, req.Identity, granted)
	})
	if err != nil {
		return out, err
	}

	// The upstream may list the same attendee under several positions; only the first
	// one is recorded.
	if err := e.ledger.Record(ctx, tickets[0].Identity()); err != nil {
		if errors.Is(err, domain.ErrDuplicateWrite) {
			e.logger.Error("registration ledger rejected a write after roles were granted",
				"order_id", req.OrderID, "ticket", tickets[0].Identity(), "error", err)
			return out, fmt.Errorf("record %s: %w", tickets[0].Identity(), err)
		}
		return out, domain.NewIntegrationError(OpLedger, err)
	}

	out.Kind = Registered
	out.Roles = granted
	return out, nil
}

// call runs fn under the per-call timeout and wraps any failure as an IntegrationError.
func (e *Engine) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		var ie *domain.IntegrationError
		if errors.As(err, &ie) {
			return err
		}
		return domain.NewIntegrationError(op, err)
	}
	return nil
}

func (e *Engine) observe(out Outcome, err error) {
	if e.metrics == nil {
		return
	}
	var ie *domain.IntegrationError
	switch {
	case err == nil:
		e.metrics.ReconcileOutcomes.WithLabelValues(out.Kind.String()).Inc()
	case errors.As(err, &ie):
		e.metrics.ReconcileOutcomes.WithLabelValues("integration_error").Inc()
		e.metrics.IntegrationErrors.WithLabelValues(ie.Op).Inc()
	case errors.Is(err, domain.ErrDuplicateWrite):
		e.metrics.ReconcileOutcomes.WithLabelValues("duplicate_write").Inc()
	default:
		e.metrics.ReconcileOutcomes.WithLabelValues("error").Inc()
	}
}
