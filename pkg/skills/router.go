package skills

import (
	"fmt"
	"strings"
)

// Route maps a command prefix to a skill name
type Route struct {
	Prefix string
	Skill  string
}

// DefaultRoutes returns the built-in prefix table
func DefaultRoutes() []Route {
	return []Route{
		{Prefix: "/gpu", Skill: GPUDiagnosisName},
	}
}

type boundRoute struct {
	prefix string
	skill  Skill
}

// Router selects a skill by command prefix
type Router struct {
	skills   map[string]Skill
	routes   []boundRoute
	fallback Skill
}

// NewRouter binds routes to skills. Later skills replace earlier ones with the same name.
func NewRouter(skills []Skill, defaultName string, routes ...Route) (*Router, error) {
	byName := make(map[string]Skill, len(skills))
	for _, s := range skills {
		if s == nil || s.Name() == "" {
			return nil, fmt.Errorf("skill must have a name")
		}
		byName[s.Name()] = s
	}

	fallback, ok := byName[defaultName]
	if !ok {
		return nil, fmt.Errorf("default skill %q is not registered", defaultName)
	}

	bound := make([]boundRoute, 0, len(routes))
	for _, r := range routes {
		if strings.TrimSpace(r.Prefix) == "" {
			return nil, fmt.Errorf("route to %q has an empty prefix", r.Skill)
		}
		s, ok := byName[r.Skill]
		if !ok {
			return nil, fmt.Errorf("route %q names unknown skill %q", r.Prefix, r.Skill)
		}
		bound = append(bound, boundRoute{prefix: r.Prefix, skill: s})
	}

	return &Router{skills: byName, routes: bound, fallback: fallback}, nil
}

// Route returns the skill for text and the text with its prefix removed.
// A prefix with nothing after it keeps the original trimmed text.
func (r *Router) Route(text string) (Skill, string) {
	trimmed := strings.TrimSpace(text)

	for _, route := range r.routes {
		if len(trimmed) < len(route.prefix) || !strings.EqualFold(trimmed[:len(route.prefix)], route.prefix) {
			continue
		}
		cleaned := strings.TrimSpace(trimmed[len(route.prefix):])
		if cleaned == "" {
			return route.skill, trimmed
		}
		return route.skill, cleaned
	}

	return r.fallback, trimmed
}

// Skill looks up a skill by name
func (r *Router) Skill(name string) (Skill, bool) {
	s, ok := r.skills[name]
	return s, ok
}

// Default returns the fallback skill
func (r *Router) Default() Skill {
	return r.fallback
}
