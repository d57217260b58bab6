package skill

import (
	"sort"
	"strings"
	"sync"

	"github.com/odvcencio/flux/pkg/logging"
	"github.com/odvcencio/flux/pkg/permission"
	"github.com/odvcencio/flux/pkg/telemetry"
)

// Registry holds the loaded skills and hands out permission trackers for them.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]*Skill
	loader *Loader

	personalDir string
	projectDir  string
	logger      *logging.Logger
	hub         *telemetry.Hub
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDirs sets the personal and project skill directories. Empty disables a source.
func WithDirs(personal, project string) RegistryOption {
	return func(r *Registry) {
		r.personalDir = personal
		r.projectDir = project
	}
}

// WithLogger reports skipped skill files.
func WithLogger(logger *logging.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithHub publishes reload events.
func WithHub(hub *telemetry.Hub) RegistryOption {
	return func(r *Registry) { r.hub = hub }
}

// NewRegistry creates a new skill registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		skills: make(map[string]*Skill),
		loader: NewLoader(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.loader.onInvalid = func(path string, err error) {
		_ = r.logger.Warn(logging.CategorySkill, "skill_skipped", err.Error(), map[string]any{"path": path})
	}
	return r
}

// Dirs returns the personal and project directories, skipping unset ones.
func (r *Registry) Dirs() []string {
	var dirs []string
	for _, dir := range []string{r.personalDir, r.projectDir} {
		if strings.TrimSpace(dir) != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// LoadAll rebuilds the registry from bundled, personal and project sources in
// that order. The previous contents are replaced only when loading succeeds.
func (r *Registry) LoadAll() error {
	skills := make(map[string]*Skill)

	if err := r.loader.LoadBundled(skills); err != nil {
		return err
	}
	if err := r.loader.LoadDir(r.personalDir, SourcePersonal, skills); err != nil {
		return err
	}
	if err := r.loader.LoadDir(r.projectDir, SourceProject, skills); err != nil {
		return err
	}

	r.mu.Lock()
	r.skills = skills
	r.mu.Unlock()

	_ = r.logger.Debug(logging.CategorySkill, "loaded", "", map[string]any{"count": len(skills)})
	r.hub.Publish(telemetry.Event{
		Type:      telemetry.EventSkillsReloaded,
		SessionID: r.logger.SessionID(),
		Data:      map[string]any{"count": len(skills)},
	})
	return nil
}

// GetSkill retrieves a skill by name, or nil.
func (r *Registry) GetSkill(name string) *Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skills[name]
}

// List returns all registered skills sorted by name.
func (r *Registry) List() []*Skill {
	r.mu.RLock()
	skills := make([]*Skill, 0, len(r.skills))
	for _, skill := range r.skills {
		skills = append(skills, skill)
	}
	r.mu.RUnlock()

	sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })
	return skills
}

// Count returns the total number of registered skills
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// Lookup is GetSkill with an ErrCodeSkillNotFound error for unknown names.
func (r *Registry) Lookup(name string) (*Skill, error) {
	skill := r.GetSkill(name)
	if skill == nil {
		return nil, notFound(name)
	}
	return skill, nil
}

// RequiredPermissions returns the permission set declared by the named skill.
func (r *Registry) RequiredPermissions(name string) (permission.Set, error) {
	skill, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return skill.RequiredPermissions(), nil
}

// PermissionSheet builds a tracker over the skill's permissions, scoped as
// "skill:<name>". The caller owns its polling lifecycle.
func (r *Registry) PermissionSheet(name string, caps permission.Capabilities, opts ...permission.Option) (*permission.Tracker, error) {
	required, err := r.RequiredPermissions(name)
	if err != nil {
		return nil, err
	}
	opts = append([]permission.Option{
		permission.WithScope("skill:" + name),
		permission.WithLogger(r.logger),
		permission.WithHub(r.hub),
	}, opts...)
	return permission.New(required, caps, opts...), nil
}
