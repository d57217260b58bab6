package skill

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BundledSkills holds embedded skill files
//
//go:embed bundled/*.md
var BundledSkills embed.FS

// Loader reads skills from the embedded bundle and from skill directories.
type Loader struct {
	bundled fs.FS
	// onInvalid is told about files that were skipped.
	onInvalid func(path string, err error)
}

// NewLoader creates a new skill loader
func NewLoader() *Loader {
	return &Loader{bundled: BundledSkills}
}

func (l *Loader) invalid(path string, err error) {
	if l.onInvalid != nil {
		l.onInvalid(path, err)
	}
}

// LoadBundled loads skills embedded in the binary
func (l *Loader) LoadBundled(skills map[string]*Skill) error {
	if l.bundled == nil {
		return nil
	}
	entries, err := fs.ReadDir(l.bundled, "bundled")
	if err != nil {
		return nil
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		p := path.Join("bundled", entry.Name())
		content, err := fs.ReadFile(l.bundled, p)
		if err != nil {
			return fmt.Errorf("failed to read bundled skill %s: %w", entry.Name(), err)
		}

		skill, err := l.parseSkillFile(string(content))
		if err != nil {
			return fmt.Errorf("failed to parse bundled skill %s: %w", entry.Name(), err)
		}
		if err := skill.Validate(); err != nil {
			return fmt.Errorf("bundled skill %s: %w", entry.Name(), err)
		}

		skill.Source = SourceBundled
		skill.FilePath = p
		skill.LoadedAt = time.Now()

		skills[skill.Name] = skill
	}

	return nil
}

// LoadDir loads every skill under dir, tagging them with source. A missing
// directory is not an error; invalid files are skipped and reported.
func (l *Loader) LoadDir(dir, source string, skills map[string]*Skill) error {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		var skillFile string
		switch {
		case entry.IsDir():
			skillFile = filepath.Join(dir, entry.Name(), "SKILL.md")
			if _, err := os.Stat(skillFile); err != nil {
				continue
			}
		case strings.HasSuffix(entry.Name(), ".md"):
			skillFile = filepath.Join(dir, entry.Name())
		default:
			continue
		}
		if err := l.loadSkillFile(skillFile, source, skills); err != nil {
			l.invalid(skillFile, err)
		}
	}

	return nil
}

// loadSkillFile loads a single skill file
func (l *Loader) loadSkillFile(path, source string, skills map[string]*Skill) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	skill, err := l.parseSkillFile(string(content))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	skill.Source = source
	skill.FilePath = path
	skill.LoadedAt = time.Now()

	if err := skill.Validate(); err != nil {
		return err
	}

	skills[skill.Name] = skill
	return nil
}

// parseSkillFile parses a SKILL.md file with YAML frontmatter
func (l *Loader) parseSkillFile(content string) (*Skill, error) {
	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		return nil, ErrInvalidSkill{Field: "frontmatter", Reason: "missing YAML frontmatter"}
	}

	var skill Skill
	if err := yaml.Unmarshal([]byte(parts[1]), &skill); err != nil {
		return nil, fmt.Errorf("failed to parse YAML frontmatter: %w", err)
	}

	skill.Content = strings.TrimSpace(parts[2])

	return &skill, nil
}
