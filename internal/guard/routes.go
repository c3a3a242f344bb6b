package guard

import (
	"fmt"
	"io"

	"github.com/studlyf/gateway/internal/models"
	"gopkg.in/yaml.v3"
)

// Routes names the navigation destinations guards redirect to.
type Routes struct {
	Login     string `yaml:"login"`
	AdminHome string `yaml:"admin_home"`
	Learner   string `yaml:"learner"`
	Mentor    string `yaml:"mentor"`
	Partner   string `yaml:"partner"`
	Root      string `yaml:"root"`
}

// DefaultRoutes returns the standard destination table.
func DefaultRoutes() Routes {
	return Routes{
		Login:     "/login",
		AdminHome: "/admin",
		Learner:   "/dashboard",
		Mentor:    "/dashboard/mentor",
		Partner:   "/dashboard/partner",
		Root:      "/",
	}
}

// Policy is the guard configuration: destination overrides plus the
// default allow-set for the Admin guard. Loadable from a YAML file so
// deployments can re-point destinations without a rebuild.
type Policy struct {
	Routes       Routes   `yaml:"routes"`
	AdminAllowed []string `yaml:"admin_allowed"`
}

// DefaultPolicy returns the built-in policy: default routes and the two
// admin tiers in the allow-set.
func DefaultPolicy() Policy {
	return Policy{
		Routes:       DefaultRoutes(),
		AdminAllowed: []string{string(models.RoleSuperAdmin), string(models.RoleAdmin)},
	}
}

// LoadPolicy reads a YAML policy, filling any omitted destination from
// the defaults. Roles in admin_allowed must be recognized values; an
// unknown role in the allow-set is a configuration error, not something
// to fail open on.
func LoadPolicy(r io.Reader) (Policy, error) {
	p := DefaultPolicy()

	data, err := io.ReadAll(r)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy: %w", err)
	}

	var loaded Policy
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy: %w", err)
	}

	if loaded.Routes.Login != "" {
		p.Routes.Login = loaded.Routes.Login
	}
	if loaded.Routes.AdminHome != "" {
		p.Routes.AdminHome = loaded.Routes.AdminHome
	}
	if loaded.Routes.Learner != "" {
		p.Routes.Learner = loaded.Routes.Learner
	}
	if loaded.Routes.Mentor != "" {
		p.Routes.Mentor = loaded.Routes.Mentor
	}
	if loaded.Routes.Partner != "" {
		p.Routes.Partner = loaded.Routes.Partner
	}
	if loaded.Routes.Root != "" {
		p.Routes.Root = loaded.Routes.Root
	}

	if len(loaded.AdminAllowed) > 0 {
		for _, s := range loaded.AdminAllowed {
			if !models.ParseRole(s).Valid() {
				return Policy{}, fmt.Errorf("unknown role in admin_allowed: %q", s)
			}
		}
		p.AdminAllowed = loaded.AdminAllowed
	}

	return p, nil
}

// AllowedRoles converts the policy allow-set to typed roles.
func (p Policy) AllowedRoles() []models.Role {
	out := make([]models.Role, 0, len(p.AdminAllowed))
	for _, s := range p.AdminAllowed {
		out = append(out, models.Role(s))
	}
	return out
}
