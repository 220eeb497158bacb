package skills

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/harun/agentengine/pkg/memory"
)

// Profile is a Skill defined by configuration data
type Profile struct {
	ProfileName string   `yaml:"name"`
	Prompt      string   `yaml:"system_prompt"`
	Tools       []string `yaml:"allowed_tools"`
	PrefetchK   int      `yaml:"prefetch_k"`
}

func (p *Profile) Name() string         { return p.ProfileName }
func (p *Profile) SystemPrompt() string { return p.Prompt }

func (p *Profile) AllowedTools() []string {
	return append([]string(nil), p.Tools...)
}

// PreRetrieve fetches PrefetchK chunks; zero disables pre-fetch
func (p *Profile) PreRetrieve(ctx context.Context, text string, retriever memory.Retriever) ([]memory.Chunk, error) {
	return prefetch(ctx, text, retriever, p.PrefetchK)
}

// RouteSpec maps a prefix to a profile name in a profiles file
type RouteSpec struct {
	Prefix  string `yaml:"prefix"`
	Profile string `yaml:"profile"`
}

// ProfilesFile is the YAML document loaded by LoadProfiles
type ProfilesFile struct {
	Default  string      `yaml:"default"`
	Profiles []*Profile  `yaml:"profiles"`
	Routes   []RouteSpec `yaml:"routes"`
}

// LoadProfiles reads and validates a profiles file
func LoadProfiles(path string) (*ProfilesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var file ProfilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}

	seen := make(map[string]bool, len(file.Profiles))
	for i, p := range file.Profiles {
		if p == nil || p.ProfileName == "" {
			return nil, fmt.Errorf("profile %d has no name", i)
		}
		if p.Prompt == "" {
			return nil, fmt.Errorf("profile %s has no system_prompt", p.ProfileName)
		}
		if p.PrefetchK < 0 {
			return nil, fmt.Errorf("profile %s has negative prefetch_k", p.ProfileName)
		}
		if seen[p.ProfileName] {
			return nil, fmt.Errorf("duplicate profile %s", p.ProfileName)
		}
		seen[p.ProfileName] = true
	}
	for i, r := range file.Routes {
		if r.Prefix == "" || r.Profile == "" {
			return nil, fmt.Errorf("route %d needs both prefix and profile", i)
		}
	}

	return &file, nil
}

// Skills returns the file's profiles as skills
func (f *ProfilesFile) Skills() []Skill {
	out := make([]Skill, 0, len(f.Profiles))
	for _, p := range f.Profiles {
		out = append(out, p)
	}
	return out
}

// RouteTable converts the file's routes to router entries
func (f *ProfilesFile) RouteTable() []Route {
	out := make([]Route, 0, len(f.Routes))
	for _, r := range f.Routes {
		out = append(out, Route{Prefix: r.Prefix, Skill: r.Profile})
	}
	return out
}
