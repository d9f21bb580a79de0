package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/guard"
	"github.com/pyladiescon/confops/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	out  reconcile.Outcome
	err  error
	reqs []reconcile.Request
}

func (f *fakeReconciler) Reconcile(_ context.Context, req reconcile.Request) (reconcile.Outcome, error) {
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

func submission() domain.RegistrationSubmitted {
	return domain.RegistrationSubmitted{
		InteractionID: "i-1",
		UserID:        "123456789012345678",
		OrderID:       "  ABC12 ",
		Name:          "Jane Doe",
	}
}

// --- RegistrationService Tests ---

func TestHandleSubmission_Registered(t *testing.T) {
	engine := &fakeReconciler{out: reconcile.Outcome{Kind: reconcile.Registered, Roles: []domain.RoleID{"1000"}}}
	audit := &recordingSink{}
	svc := NewRegistrationService(engine, nil, audit, "help", discardLogger())

	reply := svc.HandleSubmission(context.Background(), submission())

	assert.Equal(t, domain.ReplyRegistered, reply.Outcome)
	assert.True(t, reply.Ephemeral)
	assert.Contains(t, reply.Message, "Thank you Jane Doe, you are now registered!")
	assert.NotContains(t, reply.Message, "<#help>")

	require.Len(t, engine.reqs, 1)
	assert.Equal(t, "ABC12", engine.reqs[0].OrderID)
	assert.Equal(t, "Jane Doe", engine.reqs[0].AttendeeName)
	assert.Equal(t, "123456789012345678", engine.reqs[0].Identity)
	assert.Equal(t, []domain.EventType{domain.EventRegistrationSucceeded}, audit.types())
}

func TestHandleSubmission_NameNotTrimmed(t *testing.T) {
	engine := &fakeReconciler{out: reconcile.Outcome{Kind: reconcile.NotFound}}
	svc := NewRegistrationService(engine, nil, nil, "", discardLogger())

	ev := submission()
	ev.Name = "Jane Doe "
	svc.HandleSubmission(context.Background(), ev)

	require.Len(t, engine.reqs, 1)
	assert.Equal(t, "Jane Doe ", engine.reqs[0].AttendeeName)
}

func TestHandleSubmission_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		kind    reconcile.Kind
		outcome domain.ReplyOutcome
		message string
		level   domain.Level
	}{
		{"not found", reconcile.NotFound, domain.ReplyNotFound, msgNotFound, domain.LevelInfo},
		{"already registered", reconcile.AlreadyRegistered, domain.ReplyAlreadyRegistered, msgAlreadyRegistered, domain.LevelInfo},
		{"no role mapping", reconcile.NoRoleMapping, domain.ReplyNoRoleMapping, msgNoRoles, domain.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeReconciler{out: reconcile.Outcome{Kind: tt.kind}}
			audit := &recordingSink{}
			svc := NewRegistrationService(engine, nil, audit, "999", discardLogger())

			reply := svc.HandleSubmission(context.Background(), submission())

			assert.Equal(t, tt.outcome, reply.Outcome)
			assert.Contains(t, reply.Message, tt.message)
			assert.Contains(t, reply.Message, "please contact us in <#999>.")
			require.Len(t, audit.events, 1)
			assert.Equal(t, domain.EventRegistrationRejected, audit.events[0].EventType)
			assert.Equal(t, tt.level, audit.events[0].Level)
		})
	}
}

func TestHandleSubmission_NotFoundDetail(t *testing.T) {
	audit := &recordingSink{}
	svc := NewRegistrationService(&fakeReconciler{out: reconcile.Outcome{Kind: reconcile.NotFound}}, nil, audit, "", discardLogger())

	svc.HandleSubmission(context.Background(), submission())

	require.Len(t, audit.events, 1)
	assert.Contains(t, audit.events[0].Text, `No ticket found: order="ABC12", name="Jane Doe"`)
}

func TestHandleSubmission_Invalid(t *testing.T) {
	engine := &fakeReconciler{}
	svc := NewRegistrationService(engine, nil, nil, "", discardLogger())

	ev := submission()
	ev.OrderID = "A-1"
	reply := svc.HandleSubmission(context.Background(), ev)
	assert.Equal(t, domain.ReplyInvalid, reply.Outcome)

	ev = submission()
	ev.Name = "   "
	reply = svc.HandleSubmission(context.Background(), ev)
	assert.Equal(t, domain.ReplyInvalid, reply.Outcome)

	assert.Empty(t, engine.reqs, "invalid input must not reach the engine")
}

func TestHandleSubmission_IntegrationError(t *testing.T) {
	engine := &fakeReconciler{err: domain.NewIntegrationError(reconcile.OpGrantRoles, errors.New("503"))}
	audit := &recordingSink{}
	svc := NewRegistrationService(engine, nil, audit, "", discardLogger())

	reply := svc.HandleSubmission(context.Background(), submission())

	assert.Equal(t, domain.ReplyError, reply.Outcome)
	assert.Equal(t, msgSomethingWrong, reply.Message)
	assert.Equal(t, []domain.EventType{domain.EventRegistrationFailed}, audit.types())
	assert.Contains(t, audit.events[0].Text, "503")
}

func TestHandleSubmission_AdminForbidden(t *testing.T) {
	forbidden := domain.NewIntegrationError(reconcile.OpNickname, errors.Join(domain.ErrPlatformForbidden, errors.New("403")))
	engine := &fakeReconciler{err: fmt.Errorf("reconcile: %w", forbidden)}

	t.Run("admin", func(t *testing.T) {
		audit := &recordingSink{}
		svc := NewRegistrationService(engine, nil, audit, "", discardLogger())
		ev := submission()
		ev.IsAdmin = true

		reply := svc.HandleSubmission(context.Background(), ev)

		assert.Equal(t, msgAdminForbidden, reply.Message)
		require.Len(t, audit.events, 1)
		assert.Equal(t, domain.EventRegistrationRejected, audit.events[0].EventType)
		assert.Equal(t, domain.LevelError, audit.events[0].Level)
	})

	t.Run("non-admin gets generic error", func(t *testing.T) {
		svc := NewRegistrationService(engine, nil, nil, "", discardLogger())
		reply := svc.HandleSubmission(context.Background(), submission())
		assert.Equal(t, msgSomethingWrong, reply.Message)
	})
}

func TestHandleSubmission_RateLimited(t *testing.T) {
	engine := &fakeReconciler{out: reconcile.Outcome{Kind: reconcile.NotFound}}
	limiter := guard.NewRateLimiter(2, time.Minute)
	svc := NewRegistrationService(engine, limiter, nil, "", discardLogger())
	ctx := context.Background()

	svc.HandleSubmission(ctx, submission())
	svc.HandleSubmission(ctx, submission())
	reply := svc.HandleSubmission(ctx, submission())

	assert.Equal(t, domain.ReplyRateLimited, reply.Outcome)
	assert.Len(t, engine.reqs, 2)
}

func TestHandleSubmission_SuccessResetsLimiter(t *testing.T) {
	engine := &fakeReconciler{out: reconcile.Outcome{Kind: reconcile.NotFound}}
	limiter := guard.NewRateLimiter(2, time.Minute)
	svc := NewRegistrationService(engine, limiter, nil, "", discardLogger())
	ctx := context.Background()

	svc.HandleSubmission(ctx, submission())
	engine.out = reconcile.Outcome{Kind: reconcile.Registered}
	svc.HandleSubmission(ctx, submission())

	engine.out = reconcile.Outcome{Kind: reconcile.AlreadyRegistered}
	reply := svc.HandleSubmission(ctx, submission())
	assert.Equal(t, domain.ReplyAlreadyRegistered, reply.Outcome)
}

func TestHandleSubmission_AuditFailureIgnored(t *testing.T) {
	engine := &fakeReconciler{out: reconcile.Outcome{Kind: reconcile.Registered}}
	svc := NewRegistrationService(engine, nil, &recordingSink{err: errors.New("kafka down")}, "", discardLogger())

	reply := svc.HandleSubmission(context.Background(), submission())
	assert.Equal(t, domain.ReplyRegistered, reply.Outcome)
}
