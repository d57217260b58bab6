package skill

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odvcencio/flux/pkg/permission"
)

func writeSkill(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestParseSkillFile(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		want        *Skill
		wantErr     bool
		errContains string
	}{
		{
			name: "skill with permissions",
			content: `---
name: music-dj
description: Control Music
permissions:
  - microphone
  - "automation:com.apple.Music"
---

# Music DJ

Say skip.`,
			want: &Skill{
				Name:        "music-dj",
				Description: "Control Music",
				Permissions: []string{"microphone", "automation:com.apple.Music"},
				Content:     "# Music DJ\n\nSay skip.",
			},
		},
		{
			name: "minimal valid skill",
			content: `---
name: minimal-skill
description: Minimal skill
---

Content here.`,
			want: &Skill{
				Name:        "minimal-skill",
				Description: "Minimal skill",
				Content:     "Content here.",
			},
		},
		{
			name: "missing frontmatter",
			content: `# Not a valid skill file

Just content without frontmatter.`,
			wantErr:     true,
			errContains: "missing YAML frontmatter",
		},
		{
			name: "invalid YAML",
			content: `---
name: test
description: [invalid: yaml: structure
---

Content`,
			wantErr:     true,
			errContains: "failed to parse YAML frontmatter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader()
			got, err := loader.parseSkillFile(tt.content)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseSkillFile() error = nil, wantErr %v", tt.wantErr)
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("parseSkillFile() error = %v, want error containing %v", err, tt.errContains)
				}
				return
			}

			if err != nil {
				t.Fatalf("parseSkillFile() unexpected error = %v", err)
			}
			if got.Name != tt.want.Name {
				t.Errorf("Name = %v, want %v", got.Name, tt.want.Name)
			}
			if got.Description != tt.want.Description {
				t.Errorf("Description = %v, want %v", got.Description, tt.want.Description)
			}
			if strings.Join(got.Permissions, ",") != strings.Join(tt.want.Permissions, ",") {
				t.Errorf("Permissions = %v, want %v", got.Permissions, tt.want.Permissions)
			}
			if got.Content != tt.want.Content {
				t.Errorf("Content = %q, want %q", got.Content, tt.want.Content)
			}
		})
	}
}

func TestSkill_Validation(t *testing.T) {
	tests := []struct {
		name    string
		skill   Skill
		field   string
		wantErr bool
	}{
		{name: "valid", skill: Skill{Name: "ok", Description: "fine"}},
		{name: "missing name", skill: Skill{Description: "x"}, field: "name", wantErr: true},
		{name: "missing description", skill: Skill{Name: "x"}, field: "description", wantErr: true},
		{name: "name too long", skill: Skill{Name: strings.Repeat("a", 65), Description: "x"}, field: "name", wantErr: true},
		{name: "description too long", skill: Skill{Name: "x", Description: strings.Repeat("d", 1025)}, field: "description", wantErr: true},
		{name: "unknown permission", skill: Skill{Name: "x", Description: "x", Permissions: []string{"bluetooth"}}, field: "permissions", wantErr: true},
		{name: "automation without target", skill: Skill{Name: "x", Description: "x", Permissions: []string{"automation"}}, field: "permissions", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.skill.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				return
			}
			invalid, ok := err.(ErrInvalidSkill)
			if !ok {
				t.Fatalf("Validate() error = %T %v, want ErrInvalidSkill", err, err)
			}
			if invalid.Field != tt.field {
				t.Errorf("Field = %q, want %q", invalid.Field, tt.field)
			}
		})
	}
}

func TestSkill_RequiredPermissions(t *testing.T) {
	s := Skill{
		Name:        "dictation",
		Description: "Dictate",
		Permissions: []string{"mic", "accessibility", "microphone"},
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	got := s.RequiredPermissions()
	want := permission.Set{permission.Microphone, permission.Accessibility}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("RequiredPermissions() = %v, want %v", got, want)
	}
	if !s.NeedsPermissions() {
		t.Fatalf("NeedsPermissions() = false")
	}

	got[0] = permission.ScreenRecording
	if s.RequiredPermissions()[0] != permission.Microphone {
		t.Fatalf("RequiredPermissions() must return a copy")
	}
}

func TestLoadDir_FlatAndNested(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, filepath.Join(dir, "flat.md"), "---\nname: flat\ndescription: Flat skill\n---\nbody")
	writeSkill(t, filepath.Join(dir, "nested", "SKILL.md"), "---\nname: nested\ndescription: Nested skill\npermissions: [accessibility]\n---\nbody")
	writeSkill(t, filepath.Join(dir, "empty-subdir", "README.txt"), "not a skill")
	writeSkill(t, filepath.Join(dir, "notes.txt"), "ignored")

	skills := make(map[string]*Skill)
	if err := NewLoader().LoadDir(dir, SourceProject, skills); err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(skills) != 2 {
		t.Fatalf("loaded %d skills, want 2", len(skills))
	}
	nested := skills["nested"]
	if nested == nil || nested.Source != SourceProject {
		t.Fatalf("nested skill missing or wrong source: %+v", nested)
	}
	if nested.FilePath != filepath.Join(dir, "nested", "SKILL.md") {
		t.Errorf("FilePath = %s", nested.FilePath)
	}
	if !nested.RequiredPermissions().Contains(permission.Accessibility) {
		t.Errorf("nested skill should require accessibility")
	}
}

func TestLoadDir_SkipsInvalidAndReports(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, filepath.Join(dir, "good.md"), "---\nname: good\ndescription: Good\n---\n")
	writeSkill(t, filepath.Join(dir, "bad.md"), "---\nname: bad\ndescription: Bad\npermissions: [telepathy]\n---\n")

	var reported []string
	loader := NewLoader()
	loader.onInvalid = func(path string, err error) { reported = append(reported, filepath.Base(path)) }

	skills := make(map[string]*Skill)
	if err := loader.LoadDir(dir, SourcePersonal, skills); err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if _, ok := skills["bad"]; ok {
		t.Fatalf("skill with unknown permission should be skipped")
	}
	if _, ok := skills["good"]; !ok {
		t.Fatalf("valid skill should load")
	}
	if len(reported) != 1 || reported[0] != "bad.md" {
		t.Fatalf("reported = %v, want [bad.md]", reported)
	}
}

func TestLoadDir_NonExistent(t *testing.T) {
	skills := make(map[string]*Skill)
	if err := NewLoader().LoadDir(filepath.Join(t.TempDir(), "missing"), SourcePersonal, skills); err != nil {
		t.Fatalf("LoadDir() on missing dir error = %v", err)
	}
	if err := NewLoader().LoadDir("", SourcePersonal, skills); err != nil {
		t.Fatalf("LoadDir() on empty dir error = %v", err)
	}
	if len(skills) != 0 {
		t.Fatalf("expected no skills")
	}
}

func TestLoadBundled(t *testing.T) {
	skills := make(map[string]*Skill)
	if err := NewLoader().LoadBundled(skills); err != nil {
		t.Fatalf("LoadBundled() error = %v", err)
	}

	for _, name := range []string{"dictation", "screen-context", "window-control", "music-dj"} {
		s, ok := skills[name]
		if !ok {
			t.Errorf("bundled skill %q missing", name)
			continue
		}
		if s.Source != SourceBundled {
			t.Errorf("%s source = %s", name, s.Source)
		}
		if !s.NeedsPermissions() {
			t.Errorf("%s declares no permissions", name)
		}
	}

	dj := skills["music-dj"]
	if dj != nil && !dj.RequiredPermissions().Contains(permission.Automation("com.apple.Music")) {
		t.Errorf("music-dj should require automation of Music")
	}
}
