package service

import (
	"context"
	"log/slog"

	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/notify"
)

// RoleGranter adds roles to a chat member. *provider.DiscordClient satisfies it.
type RoleGranter interface {
	GrantRoles(ctx context.Context, userID string, roles []domain.RoleID) error
}

// VolunteerService assigns the volunteer role to members outside the ticket flow.
type VolunteerService struct {
	granter RoleGranter
	role    domain.RoleID
	log     *notify.ChannelLogger
	audit   notify.Sink
	logger  *slog.Logger
}

// NewVolunteerService creates a VolunteerService. channelLog and audit may be nil.
func NewVolunteerService(granter RoleGranter, role domain.RoleID, channelLog *notify.ChannelLogger, audit notify.Sink, logger *slog.Logger) *VolunteerService {
	return &VolunteerService{granter: granter, role: role, log: channelLog, audit: audit, logger: logger}
}

// AssignVolunteer grants the volunteer role to userID.
func (s *VolunteerService) AssignVolunteer(ctx context.Context, userID string) error {
	if err := domain.ValidateSnowflake(userID); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if s.role == "" {
		return domain.ErrValidation("volunteer role is not configured")
	}

	if err := s.granter.GrantRoles(ctx, userID, []domain.RoleID{s.role}); err != nil {
		if s.log != nil {
			s.log.Error(ctx, "failed to assign volunteer role", "user_id", userID, "error", err)
		}
		return domain.NewIntegrationError("grant_roles", err)
	}

	event := domain.NewVolunteerAssignedEvent(userID, s.role)
	if s.log != nil {
		s.log.Info(ctx, event.Text)
	} else {
		s.logger.Info("volunteer role assigned", "user_id", userID, "role_id", s.role)
	}
	if s.audit != nil {
		if err := s.audit.Publish(ctx, event); err != nil {
			s.logger.Error("publish audit event", "event_type", event.EventType, "error", err)
		}
	}
	return nil
}
