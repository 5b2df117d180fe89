package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/givelane/internal/audit/domain"
	authdomain "github.com/smallbiznis/givelane/internal/auth/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectDonation     = "donation"
	ObjectSubscription = "subscription"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionDonationCreate = "donation.create"
	ActionDonationView   = "donation.view"

	ActionSubscriptionCreate = "subscription.create"
	ActionSubscriptionView   = "subscription.view"
	ActionSubscriptionUpdate = "subscription.update"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer loads policies from casbin_rule and seeds the built-in role
// permissions.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, principal authdomain.Principal, object string, action string) error {
	subjectID := strings.TrimSpace(principal.Subject)
	if subjectID == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	role, err := authdomain.ParseRole(string(principal.Role))
	if err != nil {
		return ErrInvalidActor
	}
	subject := fmt.Sprintf("%s:%s", role, subjectID)
	if err := s.ensureGrouping(subject, roleName(role)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, role, subjectID, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) ensureGrouping(subject string, role string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == role {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, role)
	if err != nil || has {
		return err
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, role)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, role authdomain.Role, subjectID string, object string, action string) {
	s.log.Info("authorization denied",
		zap.String("role", string(role)),
		zap.String("subject", subjectID),
		zap.String("object", object),
		zap.String("action", action),
	)
	if s.auditSvc == nil {
		return
	}
	actorType := auditdomain.ActorTypeDonor
	if role == authdomain.RoleAdmin {
		actorType = auditdomain.ActorTypeAdmin
	}
	if err := s.auditSvc.Record(ctx, nil, auditdomain.Entry{
		ActorType:  actorType,
		ActorID:    subjectID,
		Action:     auditdomain.ActionAuthorizationDenied,
		TargetType: "authorization",
		TargetID:   object,
		Metadata: map[string]any{
			"object": object,
			"action": action,
		},
	}); err != nil {
		s.log.Warn("failed to audit authorization denial", zap.Error(err))
	}
}

func roleName(role authdomain.Role) string {
	return "role:" + string(role)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	donor := roleName(authdomain.RoleDonor)
	admin := roleName(authdomain.RoleAdmin)
	policies := [][]string{
		// Donors act on their own records.
		{donor, ObjectDonation, ActionDonationCreate},
		{donor, ObjectDonation, ActionDonationView},
		{donor, ObjectSubscription, ActionSubscriptionCreate},
		{donor, ObjectSubscription, ActionSubscriptionView},
		{donor, ObjectSubscription, ActionSubscriptionUpdate},

		{admin, ObjectDonation, ActionDonationView},
		{admin, ObjectSubscription, ActionSubscriptionView},
		{admin, ObjectSubscription, ActionSubscriptionUpdate},
		{admin, ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
