package authorization

import (
	"context"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/givelane/internal/audit/domain"
	auditrepository "github.com/smallbiznis/givelane/internal/audit/repository"
	auditservice "github.com/smallbiznis/givelane/internal/audit/service"
	authdomain "github.com/smallbiznis/givelane/internal/auth/domain"
	"github.com/smallbiznis/givelane/internal/clock"
	"github.com/smallbiznis/givelane/internal/testutil/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (Service, auditdomain.Service) {
	t.Helper()
	db := dbtest.Open(t)
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Clock: clock.NewFakeClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  auditrepository.Provide(),
	})
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer, AuditSvc: audit}), audit
}

func TestAuthorizeByRole(t *testing.T) {
	svc, _ := newTestService(t)
	donor := authdomain.Principal{Subject: "101", Role: authdomain.RoleDonor}
	admin := authdomain.Principal{Subject: "1", Role: authdomain.RoleAdmin}

	tests := []struct {
		name      string
		principal authdomain.Principal
		object    string
		action    string
		allowed   bool
	}{
		{"donor creates donation", donor, ObjectDonation, ActionDonationCreate, true},
		{"donor updates subscription", donor, ObjectSubscription, ActionSubscriptionUpdate, true},
		{"donor reads audit log", donor, ObjectAuditLog, ActionAuditLogView, false},
		{"admin reads audit log", admin, ObjectAuditLog, ActionAuditLogView, true},
		{"admin updates subscription", admin, ObjectSubscription, ActionSubscriptionUpdate, true},
		{"admin cannot donate", admin, ObjectDonation, ActionDonationCreate, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Authorize(context.Background(), tt.principal, tt.object, tt.action)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestAuthorizeRejectsMalformedRequests(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, authdomain.Principal{Role: authdomain.RoleDonor}, ObjectDonation, ActionDonationView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, authdomain.Principal{Subject: "1", Role: "root"}, ObjectDonation, ActionDonationView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, authdomain.Principal{Subject: "1", Role: authdomain.RoleDonor}, "", ActionDonationView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, authdomain.Principal{Subject: "1", Role: authdomain.RoleDonor}, ObjectDonation, " "), ErrInvalidAction)
}

func TestDeniedRequestsAreAudited(t *testing.T) {
	svc, audit := newTestService(t)

	err := svc.Authorize(context.Background(), authdomain.Principal{Subject: "101", Role: authdomain.RoleDonor}, ObjectAuditLog, ActionAuditLogView)
	require.ErrorIs(t, err, ErrForbidden)

	logs, err := audit.ListByTarget(context.Background(), "authorization", ObjectAuditLog)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, auditdomain.ActionAuthorizationDenied, logs[0].Action)
}

func TestSeedIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	_, err := NewEnforcer(db)
	require.NoError(t, err)
	_, err = NewEnforcer(db)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(1) FROM casbin_rule WHERE ptype = 'p'`).Scan(&count).Error)
	assert.Equal(t, int64(9), count)
}
