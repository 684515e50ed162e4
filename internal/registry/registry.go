// Package registry holds the immutable table of agent profiles.
// Profiles are loaded once, validated, and only read afterwards, so a Registry
// is safe for concurrent use without locking.
package registry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"bytedge/internal/data/embedded"
	"bytedge/pkg/edgetypes"
)

// agentFile is the on-disk layout of an agent table.
type agentFile struct {
	Agents []edgetypes.AgentProfile `yaml:"agents"`
}

// Registry maps agent ids to profiles and remembers their declared order.
type Registry struct {
	profiles []edgetypes.AgentProfile
	index    map[string]int
}

// New validates profiles and builds a registry preserving their order.
// It fails on empty or duplicate ids, empty system prompts and empty keywords.
// Keywords are stored lower-cased and trimmed.
func New(profiles []edgetypes.AgentProfile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("agent registry cannot be empty")
	}

	r := &Registry{
		profiles: make([]edgetypes.AgentProfile, 0, len(profiles)),
		index:    make(map[string]int, len(profiles)),
	}

	for i, p := range profiles {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("agent at position %d has no id", i)
		}
		if _, dup := r.index[id]; dup {
			return nil, fmt.Errorf("duplicate agent id %q", id)
		}
		if strings.TrimSpace(p.SystemPrompt) == "" {
			return nil, fmt.Errorf("agent %q has an empty system prompt", id)
		}

		primary, err := normalizeKeywords(id, "primary", p.Keywords.Primary)
		if err != nil {
			return nil, err
		}
		secondary, err := normalizeKeywords(id, "secondary", p.Keywords.Secondary)
		if err != nil {
			return nil, err
		}

		p.ID = id
		p.Keywords = edgetypes.KeywordSet{Primary: primary, Secondary: secondary}
		r.index[id] = len(r.profiles)
		r.profiles = append(r.profiles, p)
	}

	return r, nil
}

// normalizeKeywords returns a lower-cased, trimmed copy of keywords.
// Queries are matched lower-cased, and an empty keyword would match every query.
func normalizeKeywords(id, kind string, keywords []string) ([]string, error) {
	if keywords == nil {
		return nil, nil
	}
	out := make([]string, len(keywords))
	for i, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			return nil, fmt.Errorf("agent %q has an empty %s keyword at position %d", id, kind, i)
		}
		out[i] = kw
	}
	return out, nil
}

// Load parses a YAML agent table and builds a registry from it.
func Load(data []byte) (*Registry, error) {
	var file agentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse agent table: %w", err)
	}
	return New(file.Agents)
}

// LoadFile reads a YAML agent table from path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent table %s: %w", path, err)
	}
	reg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Default returns the registry built from the embedded agent table.
func Default() (*Registry, error) {
	return Load(embedded.AgentsData)
}

// Open returns the registry from path, or the embedded table when path is empty.
func Open(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	return LoadFile(path)
}

// Lookup returns the profile for id or an error wrapping edgetypes.ErrUnknownAgent.
func (r *Registry) Lookup(id string) (*edgetypes.AgentProfile, error) {
	i, ok := r.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", edgetypes.ErrUnknownAgent, id)
	}
	p := r.profiles[i]
	return &p, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.index[id]
	return ok
}

// List returns a copy of all profiles in declared order.
func (r *Registry) List() []edgetypes.AgentProfile {
	out := make([]edgetypes.AgentProfile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// IDs returns all agent ids in declared order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.profiles))
	for i, p := range r.profiles {
		ids[i] = p.ID
	}
	return ids
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	return len(r.profiles)
}
