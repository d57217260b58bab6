// Package skill loads SKILL.md documents and resolves the macOS permissions
// each skill needs before it can run.
package skill

import (
	"time"

	"github.com/odvcencio/flux/pkg/permission"
)

// Source names where a skill was loaded from. Later sources override earlier ones.
const (
	SourceBundled  = "bundled"
	SourcePersonal = "personal"
	SourceProject  = "project"
)

// Skill is a capability document with YAML frontmatter.
type Skill struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Permissions []string `yaml:"permissions,omitempty" json:"permissions,omitempty"`

	// Full markdown content (after frontmatter)
	Content string `yaml:"-" json:"content,omitempty"`

	Source   string    `yaml:"-" json:"source"`
	FilePath string    `yaml:"-" json:"filePath"`
	LoadedAt time.Time `yaml:"-" json:"loadedAt"`

	required permission.Set
}

// Validate checks required fields and resolves the permission list.
func (s *Skill) Validate() error {
	if s.Name == "" {
		return ErrInvalidSkill{Field: "name", Reason: "name is required"}
	}
	if s.Description == "" {
		return ErrInvalidSkill{Field: "description", Reason: "description is required"}
	}
	if len(s.Name) > 64 {
		return ErrInvalidSkill{Field: "name", Reason: "name must be 64 characters or less"}
	}
	if len(s.Description) > 1024 {
		return ErrInvalidSkill{Field: "description", Reason: "description must be 1024 characters or less"}
	}
	required, err := permission.ParseSet(s.Permissions)
	if err != nil {
		return ErrInvalidSkill{Field: "permissions", Reason: err.Error()}
	}
	s.required = required
	return nil
}

// RequiredPermissions returns the skill's permission set in declaration order.
func (s *Skill) RequiredPermissions() permission.Set {
	return append(permission.Set(nil), s.required...)
}

// NeedsPermissions reports whether the skill declares any permission.
func (s *Skill) NeedsPermissions() bool {
	return len(s.required) > 0
}
