// Package manifest describes the python packages the trading program needs and
// how each group is allowed to fail.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Group string

const (
	GroupTooling  Group = "tooling"
	GroupCore     Group = "core"
	GroupFallback Group = "fallback"
	GroupOptional Group = "optional"
)

type SourceKind string

const (
	// SourceIndex installs name+constraint from the configured package index.
	SourceIndex SourceKind = "index"
	// SourceVCS installs from a pip VCS reference (git+https://...).
	SourceVCS SourceKind = "vcs"
)

const DefaultVCSTimeout = 5 * time.Minute

// Source is one way of obtaining a package.
type Source struct {
	Kind           SourceKind `yaml:"kind" validate:"required,oneof=index vcs"`
	Constraint     string     `yaml:"version,omitempty"`
	URL            string     `yaml:"url,omitempty" validate:"required_if=Kind vcs"`
	TimeoutSeconds int        `yaml:"timeout_seconds,omitempty" validate:"gte=0"`
}

// Target is the argument handed to pip install.
func (s Source) Target(pkg string) string {
	if s.Kind == SourceVCS {
		return s.URL
	}
	return pkg + s.Constraint
}

// Describe names the source in console output and diagnostics.
func (s Source) Describe(pkg string) string {
	if s.Kind == SourceVCS {
		return s.URL
	}
	return fmt.Sprintf("package index (%s)", s.Target(pkg))
}

func (s Source) Timeout() time.Duration {
	if s.TimeoutSeconds > 0 {
		return time.Duration(s.TimeoutSeconds) * time.Second
	}
	if s.Kind == SourceVCS {
		return DefaultVCSTimeout
	}
	return 0
}

type Package struct {
	Name       string `yaml:"name" validate:"required"`
	Constraint string `yaml:"version,omitempty"`
	// Module is the import name checked by verify (python-dotenv -> dotenv).
	Module  string   `yaml:"module,omitempty"`
	Sources []Source `yaml:"sources,omitempty" validate:"dive"`
}

func (p Package) Requirement() Requirement {
	return Requirement{Name: p.Name, Constraint: p.Constraint}
}

type Manifest struct {
	// Tooling entries are pip requirement strings such as "pip>=24".
	Tooling  []string  `yaml:"tooling"`
	Core     []Package `yaml:"core" validate:"dive"`
	Fallback []Package `yaml:"fallback" validate:"len=1,dive"`
	Optional []Package `yaml:"optional" validate:"dive"`
}

// FallbackPackage returns the single required-with-fallback entry.
func (m Manifest) FallbackPackage() Package {
	if len(m.Fallback) == 0 {
		return Package{}
	}
	return m.Fallback[0]
}

// Names returns the package names of a group in order.
func (m Manifest) Names(g Group) []string {
	var pkgs []Package
	switch g {
	case GroupTooling:
		return append([]string(nil), m.Tooling...)
	case GroupCore:
		pkgs = m.Core
	case GroupFallback:
		pkgs = m.Fallback
	case GroupOptional:
		pkgs = m.Optional
	}
	out := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, p.Name)
	}
	return out
}

var validate = validator.New()

func (m Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.StructField() == "Fallback" && fe.Tag() == "len" {
				return fmt.Errorf("manifest: exactly one fallback package required, got %d", len(m.Fallback))
			}
			return fmt.Errorf("manifest: %s failed %q", strings.TrimPrefix(fe.Namespace(), "Manifest."), fe.Tag())
		}
		return fmt.Errorf("manifest: %w", err)
	}

	for _, entry := range m.Tooling {
		if _, err := ParseRequirement(entry); err != nil {
			return fmt.Errorf("manifest tooling: %w", err)
		}
	}

	seen := make(map[string]Group)
	groups := []struct {
		g    Group
		pkgs []Package
	}{{GroupCore, m.Core}, {GroupFallback, m.Fallback}, {GroupOptional, m.Optional}}
	for _, grp := range groups {
		for _, p := range grp.pkgs {
			if err := checkPackage(grp.g, p); err != nil {
				return err
			}
			key := strings.ToLower(p.Name)
			if prev, dup := seen[key]; dup {
				return fmt.Errorf("manifest: %s listed in both %s and %s", p.Name, prev, grp.g)
			}
			seen[key] = grp.g
		}
	}
	return nil
}

func checkPackage(g Group, p Package) error {
	if err := ValidateName(p.Name); err != nil {
		return fmt.Errorf("manifest %s: %w", g, err)
	}
	if err := ValidateConstraint(p.Constraint); err != nil {
		return fmt.Errorf("manifest %s %s: %w", g, p.Name, err)
	}
	if p.Module != "" {
		if err := ValidateModule(p.Module); err != nil {
			return fmt.Errorf("manifest %s %s: %w", g, p.Name, err)
		}
	}
	if g != GroupFallback {
		if len(p.Sources) > 0 {
			return fmt.Errorf("manifest %s %s: sources are only allowed on the fallback package", g, p.Name)
		}
		return nil
	}
	if len(p.Sources) == 0 {
		return fmt.Errorf("manifest fallback %s: at least one source required", p.Name)
	}
	for i, s := range p.Sources {
		switch s.Kind {
		case SourceIndex:
			if err := ValidateConstraint(s.Constraint); err != nil {
				return fmt.Errorf("manifest fallback %s source %d: %w", p.Name, i, err)
			}
		case SourceVCS:
			if !strings.HasPrefix(s.URL, "git+") {
				return fmt.Errorf("manifest fallback %s source %d: vcs url must start with git+, got %q", p.Name, i, s.URL)
			}
		}
	}
	return nil
}

// Load reads a YAML manifest. Unknown fields are rejected.
func Load(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Default is the dependency set of the trading program.
func Default() Manifest {
	return Manifest{
		Tooling: []string{"pip", "setuptools", "wheel"},
		Core: []Package{
			{Name: "python-dotenv", Constraint: ">=1.0.0", Module: "dotenv"},
			{Name: "httpx", Module: "httpx"},
			{Name: "eth-account", Constraint: ">=0.13.0", Module: "eth_account"},
			{Name: "eth-utils", Constraint: ">=4.1.1", Module: "eth_utils"},
			{Name: "web3", Constraint: ">=7.0.0", Module: "web3"},
		},
		Fallback: []Package{
			{
				Name:   "py-clob-client",
				Module: "py_clob_client",
				Sources: []Source{
					{Kind: SourceIndex, Constraint: ">=0.34.5"},
					{Kind: SourceVCS, URL: "git+https://github.com/Polymarket/py-clob-client.git"},
				},
			},
		},
		Optional: []Package{
			{Name: "python-telegram-bot", Constraint: ">=20.0", Module: "telegram"},
			{Name: "pytz", Constraint: ">=2023.3", Module: "pytz"},
		},
	}
}
