package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/guard"
	"github.com/pyladiescon/confops/internal/notify"
	"github.com/pyladiescon/confops/internal/reconcile"
)

// Requester messages.
const (
	msgRegistered = "Thank you %s, you are now registered!\n\n" +
		"Also, your nickname was changed to the name you used to register your ticket.\n" +
		"Because this is an online conference, your nickname will be your Conference Badge! " +
		"(In case you cannot use your real name, please contact the Organizers)"
	msgNotFound          = "We cannot find your ticket. Please double check your input and try again."
	msgAlreadyRegistered = "You have already registered."
	msgNoRoles           = "No ticket found."
	msgAdminForbidden    = "Admins cannot be registered via the bot."
	msgSomethingWrong    = "Something went wrong."
	msgRateLimited       = "Too many registration attempts. Please wait a few minutes and try again."
)

// Reconciler runs a registration claim. *reconcile.Engine satisfies it.
type Reconciler interface {
	Reconcile(ctx context.Context, req reconcile.Request) (reconcile.Outcome, error)
}

// RegistrationService turns registration form submissions into reconciliations, replies
// to the member and writes the audit trail.
type RegistrationService struct {
	engine        Reconciler
	limiter       *guard.RateLimiter
	audit         notify.Sink
	helpChannelID string
	logger        *slog.Logger
}

// NewRegistrationService creates a RegistrationService. limiter may be nil.
func NewRegistrationService(engine Reconciler, limiter *guard.RateLimiter, audit notify.Sink, helpChannelID string, logger *slog.Logger) *RegistrationService {
	return &RegistrationService{
		engine:        engine,
		limiter:       limiter,
		audit:         audit,
		helpChannelID: helpChannelID,
		logger:        logger,
	}
}

// HandleSubmission processes one submission. It never fails: every result, including
// upstream failures, is rendered as a reply.
func (s *RegistrationService) HandleSubmission(ctx context.Context, ev domain.RegistrationSubmitted) domain.Reply {
	order := strings.TrimSpace(ev.OrderID)
	name := ev.Name
	s.logger.Debug("registration attempt", "user_id", ev.UserID, "order_id", order, "name", name)

	if err := validateSubmission(order, name); err != nil {
		return s.errorReply(domain.ReplyInvalid, err.Error())
	}

	if s.limiter != nil {
		if res := s.limiter.Check(ctx, ev.UserID); !res.Allowed {
			s.logger.Warn("registration rate limited", "user_id", ev.UserID, "reason", res.Reason)
			return s.errorReply(domain.ReplyRateLimited, msgRateLimited)
		}
	}

	out, err := s.engine.Reconcile(ctx, reconcile.Request{
		OrderID:      order,
		AttendeeName: name,
		Identity:     ev.UserID,
	})
	if err != nil {
		return s.failed(ctx, ev, order, err)
	}

	switch out.Kind {
	case reconcile.Registered:
		if s.limiter != nil {
			s.limiter.Reset(ev.UserID)
		}
		roles := make([]string, len(out.Roles))
		for i, r := range out.Roles {
			roles[i] = string(r)
		}
		s.publish(ctx, domain.NewRegistrationSucceededEvent(ev.UserID, order, name, roles))
		s.logger.Info("registration successful", "order_id", order, "name", name)
		return domain.Reply{
			Outcome:   domain.ReplyRegistered,
			Message:   fmt.Sprintf(msgRegistered, name),
			Ephemeral: true,
		}

	case reconcile.NotFound:
		s.logger.Info("no ticket found", "order_id", order, "name", name)
		s.reject(ctx, ev, order, out.Kind, fmt.Sprintf("No ticket found: order=%q, name=%q", order, name), domain.LevelInfo)
		return s.errorReply(domain.ReplyNotFound, msgNotFound)

	case reconcile.AlreadyRegistered:
		s.logger.Info("already registered", "order_id", order, "tickets", identities(out.Tickets))
		s.reject(ctx, ev, order, out.Kind, fmt.Sprintf("Already registered: order=%q, name=%q", order, name), domain.LevelInfo)
		return s.errorReply(domain.ReplyAlreadyRegistered, msgAlreadyRegistered)

	case reconcile.NoRoleMapping:
		s.logger.Warn("tickets without role assignments", "order_id", order, "tickets", out.Tickets)
		s.reject(ctx, ev, order, out.Kind, fmt.Sprintf("Tickets without roles: %v", out.Tickets), domain.LevelWarn)
		return s.errorReply(domain.ReplyNoRoleMapping, msgNoRoles)

	default:
		return s.failed(ctx, ev, order, fmt.Errorf("unexpected outcome %v", out.Kind))
	}
}

func (s *RegistrationService) failed(ctx context.Context, ev domain.RegistrationSubmitted, order string, err error) domain.Reply {
	if ev.IsAdmin && errors.Is(err, domain.ErrPlatformForbidden) {
		s.logger.Error("registration failed, user is admin", "user_id", ev.UserID, "order_id", order, "error", err)
		s.publish(ctx, domain.NewRegistrationRejectedEvent(ev.UserID, order, "admin_forbidden",
			fmt.Sprintf("Cannot register admins (%T: %v)", err, err), domain.LevelError))
		return s.errorReply(domain.ReplyError, msgAdminForbidden)
	}

	s.logger.Error("registration failed", "user_id", ev.UserID, "order_id", order, "error", err)
	s.publish(ctx, domain.NewRegistrationFailedEvent(ev.UserID, order, err))
	return s.errorReply(domain.ReplyError, msgSomethingWrong)
}

func (s *RegistrationService) reject(ctx context.Context, ev domain.RegistrationSubmitted, order string, kind reconcile.Kind, detail string, level domain.Level) {
	s.publish(ctx, domain.NewRegistrationRejectedEvent(ev.UserID, order, kind.String(), detail, level))
}

// publish writes an audit event. Audit failures never change the reply.
func (s *RegistrationService) publish(ctx context.Context, event domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Publish(ctx, event); err != nil {
		s.logger.Error("publish audit event", "event_type", event.EventType, "error", err)
	}
}

func (s *RegistrationService) errorReply(outcome domain.ReplyOutcome, msg string) domain.Reply {
	if s.helpChannelID != "" {
		msg = fmt.Sprintf("%s If you need help, please contact us in <#%s>.", msg, s.helpChannelID)
	}
	return domain.Reply{Outcome: outcome, Message: msg, Ephemeral: true}
}

func validateSubmission(order, name string) error {
	if err := domain.ValidateOrderCode(order); err != nil {
		return err
	}
	return domain.ValidateAttendeeName(name)
}

func identities(tickets []domain.Ticket) []string {
	ids := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i] = t.Identity()
	}
	return ids
}
