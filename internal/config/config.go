package config

import (
	"fmt"
	"os"

	"github.com/a8m/envsubst"
	"github.com/goccy/go-yaml"
)

const (
	DefaultCommitMessage = "Chore: Atualiza caches de estado"
	DefaultAuthorName    = "github-actions[bot]"
	DefaultAuthorEmail   = "github-actions[bot]@users.noreply.github.com"
	DefaultBranch        = "main"
	DefaultRemote        = "origin"
)

type Config struct {
	Options   Options            `yaml:"options"`
	Globals   map[string]any     `yaml:"globals"`
	Repo      Repo               `yaml:"repo"`
	Trigger   Trigger            `yaml:"trigger"`
	Prepare   Prepare            `yaml:"prepare"`
	Script    Script             `yaml:"script"`
	Secrets   map[string]string  `yaml:"secrets" validate:"dive,keys,envname,endkeys"`
	Artifacts []string           `yaml:"artifacts" validate:"dive,required"`
	Commit    Commit             `yaml:"commit"`
	Services  map[string]Service `yaml:"services" validate:"dive"`
	Notify    Notify             `yaml:"notify"`
}

// Options holds flat string settings that can be overridden from the command
// line. Every field gets a --kebab-case flag derived from its yaml tag.
type Options struct {
	WorkDir   string `yaml:"work_dir" validate:"required"`
	RemoteURL string `yaml:"remote_url"`
	Branch    string `yaml:"branch"`
	LogLevel  string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

type Repo struct {
	Remote string `yaml:"remote"`
	Git    string `yaml:"git"`
}

type Trigger struct {
	Interval string `yaml:"interval" validate:"omitempty,duration"`
	Cron     string `yaml:"cron" validate:"omitempty,cronspec"`
	Overlap  string `yaml:"overlap" validate:"omitempty,oneof=skip delay"`
}

type Prepare struct {
	Require  []string   `yaml:"require" validate:"dive,required"`
	Commands [][]string `yaml:"commands" validate:"dive,min=1"`
	Timeout  string     `yaml:"timeout" validate:"omitempty,duration"`
}

type Script struct {
	Path        string   `yaml:"path" validate:"required"`
	Args        []string `yaml:"args"`
	SHA256      SHA256   `yaml:"sha256"`
	Timeout     string   `yaml:"timeout" validate:"omitempty,duration"`
	Passthrough []string `yaml:"passthrough" validate:"dive,envname"`
}

type Commit struct {
	Message     string `yaml:"message"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

type Service struct {
	URL    string            `yaml:"url" validate:"required"`
	Params map[string]string `yaml:"params"`
}

// Notify describes the notifications sent when a run fails.
type Notify struct {
	Template string         `yaml:"template"`
	Targets  []NotifyTarget `yaml:"targets"`
}

// SHA256 handles both string hashes and `false` (opt-out).
type SHA256 struct {
	Hash     string
	Disabled bool
}

func (s *SHA256) UnmarshalYAML(unmarshal func(any) error) error {
	var b bool
	if err := unmarshal(&b); err == nil {
		if b {
			return fmt.Errorf("sha256: true is not valid, use a hash string or false")
		}
		s.Disabled = true
		return nil
	}

	var str string
	if err := unmarshal(&str); err != nil {
		return fmt.Errorf("sha256: must be a hex string or false")
	}
	s.Hash = str
	return nil
}

// NotifyTarget handles a plain service name string or an object with overrides.
type NotifyTarget struct {
	Service  string            `yaml:"service"`
	Template string            `yaml:"template"`
	Params   map[string]string `yaml:"params"`
}

func (n *NotifyTarget) UnmarshalYAML(unmarshal func(any) error) error {
	var str string
	if err := unmarshal(&str); err == nil {
		n.Service = str
		return nil
	}

	type notifyAlias NotifyTarget
	var obj notifyAlias
	if err := unmarshal(&obj); err != nil {
		return fmt.Errorf("notify: must be a service name string or an object with service/template/params")
	}
	*n = NotifyTarget(obj)
	return nil
}

// Load reads, expands and parses the config file at path, then applies
// defaults. It does not validate; call Validate for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references in data and decodes it.
func Parse(data []byte) (*Config, error) {
	data, err := envsubst.Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("expanding env vars: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Options.Branch == "" {
		c.Options.Branch = DefaultBranch
	}
	if c.Options.LogLevel == "" {
		c.Options.LogLevel = "info"
	}
	if c.Repo.Remote == "" {
		c.Repo.Remote = DefaultRemote
	}
	if c.Repo.Git == "" {
		c.Repo.Git = "git"
	}
	if c.Trigger.Overlap == "" {
		c.Trigger.Overlap = "skip"
	}
	if len(c.Artifacts) == 0 {
		c.Artifacts = []string{"*.json"}
	}
	if c.Script.Passthrough == nil {
		c.Script.Passthrough = []string{"PATH", "HOME", "LANG", "TZ"}
	}
	if c.Commit.Message == "" {
		c.Commit.Message = DefaultCommitMessage
	}
	if c.Commit.AuthorName == "" {
		c.Commit.AuthorName = DefaultAuthorName
	}
	if c.Commit.AuthorEmail == "" {
		c.Commit.AuthorEmail = DefaultAuthorEmail
	}
}

// Schedule returns the cron spec for the trigger. An interval becomes an
// "@every" descriptor; an empty trigger yields "".
func (t Trigger) Schedule() string {
	switch {
	case t.Cron != "":
		return t.Cron
	case t.Interval != "":
		return "@every " + t.Interval
	default:
		return ""
	}
}
