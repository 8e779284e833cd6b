package auth

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	log "github.com/sirupsen/logrus"
)

type Action string

const (
	ActionView   Action = "view"
	ActionManage Action = "manage"
)

type Resource string

const (
	ResourceProjects     Resource = "projects"
	ResourceSkills       Resource = "skills"
	ResourceCertificates Resource = "certificates"
	ResourceMessages     Resource = "messages"
	ResourceCV           Resource = "cv"
	ResourceImages       Resource = "images"
	ResourceProfile      Resource = "profile"
	ResourceAdmins       Resource = "admins"
)

var (
	//go:embed model.conf
	policyModel string
	//go:embed policy.csv
	policyRules string

	defaultPolicy = mustLoadPolicy()
)

// Policy is the static role to (resource, action) table.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

func NewPolicy(modelText, rules string) (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("load policy model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, stringadapter.NewAdapter(rules))
	if err != nil {
		return nil, fmt.Errorf("load policy rules: %w", err)
	}

	return &Policy{enforcer: enforcer}, nil
}

func mustLoadPolicy() *Policy {
	p, err := NewPolicy(policyModel, policyRules)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Policy) HasPermission(role Role, action Action, resource Resource) bool {
	if !role.IsValid() {
		return false
	}
	allowed, err := p.enforcer.Enforce(string(role), string(resource), string(action))
	if err != nil {
		log.Errorf("policy: enforce [%s %s %s]: %s", role, action, resource, err)
		return false
	}
	return allowed
}

func (p *Policy) CanAccess(role Role, resource Resource) bool {
	return p.HasPermission(role, ActionView, resource) || p.HasPermission(role, ActionManage, resource)
}

// HasPermission checks the process wide policy table.
func HasPermission(role Role, action Action, resource Resource) bool {
	return defaultPolicy.HasPermission(role, action, resource)
}

func CanAccess(role Role, resource Resource) bool {
	return defaultPolicy.CanAccess(role, resource)
}

// ActionForMethod maps an HTTP method to the policy action it needs.
func ActionForMethod(method string) Action {
	switch method {
	case "GET", "HEAD":
		return ActionView
	default:
		return ActionManage
	}
}
