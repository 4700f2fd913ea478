package annotation

import (
	"strings"
	"testing"

	"github.com/lewtec/demarcador/internal/domain"
)

func TestReadConfig_Defaults(t *testing.T) {
	cfg, err := ReadConfig(strings.NewReader("classes:\n  - name: Scratch\n"))
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %v, want :8080", cfg.Server.Addr)
	}
	if cfg.Limits.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %v, want %v", cfg.Limits.MaxUploadBytes, 10<<20)
	}
	if got := strings.Join(cfg.Limits.Extensions, ","); got != "png,jpg,jpeg" {
		t.Errorf("Extensions = %v, want png,jpg,jpeg", got)
	}
	if cfg.Editor.DefaultTool != domain.KindRectangle {
		t.Errorf("DefaultTool = %v, want rectangle", cfg.Editor.DefaultTool)
	}
	if cfg.Editor.DefaultColor != "#FF5722" {
		t.Errorf("DefaultColor = %v, want #FF5722", cfg.Editor.DefaultColor)
	}
	if cfg.Limits.MinShapeSize != 5 {
		t.Errorf("MinShapeSize = %v, want 5", cfg.Limits.MinShapeSize)
	}
}

func TestReadConfig_Sample(t *testing.T) {
	cfg, err := ReadConfig(strings.NewReader(SampleConfig))
	if err != nil {
		t.Fatalf("ReadConfig(SampleConfig) error = %v", err)
	}

	seed := cfg.SeedClasses()
	if len(seed) != 2 {
		t.Fatalf("SeedClasses() returned %d classes, want 2", len(seed))
	}
	if seed[0] != (domain.Class{Name: "Scratch", Color: "#E53935", Prefix: "SCR"}) {
		t.Errorf("SeedClasses()[0] = %+v", seed[0])
	}
	if help := cfg.ClassHelp("dent"); help == nil || help.Description == "" {
		t.Errorf("ClassHelp(dent) = %+v, want a description", help)
	}
	if !strings.Contains(cfg.Meta.Description, "defect") {
		t.Errorf("Meta.Description = %q", cfg.Meta.Description)
	}
}

func TestReadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad tool":     "editor:\n  default_tool: star\n",
		"unnamed":      "classes:\n  - color: red\n",
		"negative":     "limits:\n  max_upload_bytes: -1\n",
		"broken yaml":  "meta: [",
		"bad min size": "limits:\n  min_shape_size: -3\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadConfig(strings.NewReader(input)); err == nil {
				t.Errorf("ReadConfig(%q) expected error", input)
			}
		})
	}
}
