package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	obslogger "github.com/smallbiznis/hmsinsure/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectProviderSync = "provider_sync"
	ObjectPricePackage = "price_package"
	ObjectCoverage     = "coverage"
	ObjectItemPrice    = "item_price"
	ObjectCard         = "card"
	ObjectAppointment  = "appointment"
	ObjectClaim        = "claim"
	ObjectDeliveryNote = "delivery_note"
	ObjectJob          = "job"
	ObjectAPIKey       = "api_key"
	ObjectResponseLog  = "response_log"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"

	ActionProviderSyncRun = "provider_sync.run"

	ActionClaimValidate  = "claim.validate"
	ActionClaimSubmit    = "claim.submit"
	ActionClaimReconcile = "claim.reconcile"

	ActionDeliveryNoteValidate = "delivery_note.validate"
	ActionDeliveryNoteSubmit   = "delivery_note.submit"

	ActionAPIKeyRotate = "api_key.rotate"
	ActionAPIKeyRevoke = "api_key.revoke"
)

// RoleSystem is the role of the scheduler and background jobs.
const RoleSystem = "system"

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

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
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role, object, action string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
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

	allowed, err := s.enforcer.Enforce(subject(role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		obslogger.WithContext(ctx, s.log).Warn("authorization denied",
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func subject(role string) string { return "role:" + role }

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	// each role inherits the permissions of the one before it
	groupings := [][]string{
		{"role:claims_officer", "role:clerk"},
		{"role:admin", "role:claims_officer"},
		{"role:system", "role:admin"},
	}

	policies := [][]string{
		// Clerk: registration desk and pharmacy
		{"role:clerk", ObjectCard, ActionView},
		{"role:clerk", ObjectAppointment, ActionCreate},
		{"role:clerk", ObjectAppointment, ActionView},
		{"role:clerk", ObjectClaim, ActionView},
		{"role:clerk", ObjectClaim, ActionCreate},
		{"role:clerk", ObjectClaim, ActionUpdate},
		{"role:clerk", ObjectDeliveryNote, ActionView},
		{"role:clerk", ObjectDeliveryNote, ActionCreate},
		{"role:clerk", ObjectDeliveryNote, ActionDeliveryNoteValidate},
		{"role:clerk", ObjectDeliveryNote, ActionUpdate},
		{"role:clerk", ObjectCoverage, ActionView},
		{"role:clerk", ObjectItemPrice, ActionView},

		// Claims officer
		{"role:claims_officer", ObjectClaim, ActionClaimValidate},
		{"role:claims_officer", ObjectClaim, ActionClaimSubmit},
		{"role:claims_officer", ObjectClaim, ActionClaimReconcile},
		{"role:claims_officer", ObjectDeliveryNote, ActionDeliveryNoteSubmit},
		{"role:claims_officer", ObjectPricePackage, ActionView},
		{"role:claims_officer", ObjectResponseLog, ActionView},

		// Admin
		{"role:admin", ObjectProviderSync, ActionProviderSyncRun},
		{"role:admin", ObjectCoverage, ActionCreate},
		{"role:admin", ObjectJob, ActionView},
		{"role:admin", ObjectAPIKey, ActionView},
		{"role:admin", ObjectAPIKey, ActionCreate},
		{"role:admin", ObjectAPIKey, ActionAPIKeyRotate},
		{"role:admin", ObjectAPIKey, ActionAPIKeyRevoke},
		{"role:admin", ObjectAuditLog, ActionView},
	}

	for _, g := range groupings {
		if _, err := enforcer.AddGroupingPolicy(g); err != nil {
			return err
		}
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
