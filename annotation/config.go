package annotation

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lewtec/demarcador/internal/domain"
	"github.com/lewtec/demarcador/internal/editor"
	"github.com/lewtec/demarcador/internal/session"
	"github.com/lewtec/demarcador/internal/shape"
)

type Config struct {
	Meta struct {
		Description string `yaml:"description"`
	} `yaml:"meta"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Storage struct {
		Database string `yaml:"database"`
		Images   string `yaml:"images"`
		Blobs    string `yaml:"blobs"`
	} `yaml:"storage"`
	Limits struct {
		MaxUploadBytes int64    `yaml:"max_upload_bytes"`
		Extensions     []string `yaml:"extensions"`
		MinShapeSize   float64  `yaml:"min_shape_size"`
	} `yaml:"limits"`
	Editor struct {
		DefaultTool  domain.Kind `yaml:"default_tool"`
		DefaultColor string      `yaml:"default_color"`
	} `yaml:"editor"`
	Language string         `yaml:"language"`
	Classes  []*ConfigClass `yaml:"classes"`
}

type ConfigClass struct {
	Name        string   `yaml:"name"`
	Color       string   `yaml:"color"`
	Prefix      string   `yaml:"prefix"`
	Description string   `yaml:"description"`
	Examples    []string `yaml:"examples"`
}

func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadConfig(f)
}

// ReadConfig parses a YAML config, fills the defaults and validates it.
func ReadConfig(r io.Reader) (*Config, error) {
	var ret Config
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("while parsing config: %w", err)
	}
	ret.setDefaults()
	if err := ret.validate(); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "annotations.db"
	}
	if c.Storage.Images == "" {
		c.Storage.Images = "images"
	}
	if c.Storage.Blobs == "" {
		c.Storage.Blobs = ".blobs"
	}
	if c.Limits.MaxUploadBytes == 0 {
		c.Limits.MaxUploadBytes = session.DefaultMaxBytes
	}
	if len(c.Limits.Extensions) == 0 {
		c.Limits.Extensions = append([]string(nil), session.DefaultExtensions...)
	}
	if c.Limits.MinShapeSize == 0 {
		c.Limits.MinShapeSize = shape.DefaultMinSize
	}
	if c.Editor.DefaultTool == "" {
		c.Editor.DefaultTool = domain.KindRectangle
	}
	if c.Editor.DefaultColor == "" {
		c.Editor.DefaultColor = editor.DefaultColor
	}
	if c.Language == "" {
		c.Language = "en"
	}
}

func (c *Config) validate() error {
	if !c.Editor.DefaultTool.Valid() {
		return fmt.Errorf("editor.default_tool %q must be one of rectangle, circle or polygon", c.Editor.DefaultTool)
	}
	if c.Limits.MaxUploadBytes < 0 {
		return fmt.Errorf("limits.max_upload_bytes must not be negative")
	}
	if c.Limits.MinShapeSize < 0 {
		return fmt.Errorf("limits.min_shape_size must not be negative")
	}
	for i, class := range c.Classes {
		if class == nil || strings.TrimSpace(class.Name) == "" {
			return fmt.Errorf("class %d does not have a name", i+1)
		}
	}
	return nil
}

// SeedClasses is the initial class list of a new database.
func (c *Config) SeedClasses() []domain.Class {
	out := make([]domain.Class, 0, len(c.Classes))
	for _, class := range c.Classes {
		out = append(out, domain.Class{Name: class.Name, Color: class.Color, Prefix: class.Prefix})
	}
	return out
}

// ClassHelp finds the description of a class by name.
func (c *Config) ClassHelp(name string) *ConfigClass {
	for _, class := range c.Classes {
		if strings.EqualFold(class.Name, name) {
			return class
		}
	}
	return nil
}

func (c *Config) SessionLimits() session.Limits {
	return session.Limits{MaxBytes: c.Limits.MaxUploadBytes, Extensions: c.Limits.Extensions}
}

func (c *Config) ShapeRules() shape.Rules {
	return shape.Rules{MinSize: c.Limits.MinShapeSize}
}

// SampleConfig is written by the init command.
const SampleConfig = `# demarcador project
meta:
  description: |
    Mark every visible defect on the part. Draw tight boxes around
    scratches and circles around dents.

server:
  addr: ":8080"

storage:
  database: annotations.db
  images: images
  blobs: .blobs

limits:
  max_upload_bytes: 10485760 # 10 MiB
  extensions: [png, jpg, jpeg]
  min_shape_size: 5

editor:
  default_tool: rectangle
  default_color: "#FF5722"

language: en # en or pt-BR

classes:
  - name: Scratch
    color: "#E53935"
    prefix: SCR
    description: Thin linear marks on the surface.
  - name: Dent
    color: "#1E88E5"
    description: Local deformation of the surface.
`
