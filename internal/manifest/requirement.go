package manifest

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	nameRE   = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)
	clauseRE = regexp.MustCompile(`^(===|~=|==|!=|>=|<=|>|<)\s*[0-9][0-9A-Za-z.*+!_-]*$`)
	moduleRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// Requirement is a package name plus an optional version specifier such as
// ">=1.0.0" or ">=1.0,<2".
type Requirement struct {
	Name       string
	Constraint string
}

func (r Requirement) String() string { return r.Name + r.Constraint }

// ParseRequirement splits "eth-account>=0.13.0" into name and constraint.
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	idx := strings.IndexAny(s, "<>=!~ ")
	if idx < 0 {
		idx = len(s)
	}
	r := Requirement{Name: s[:idx], Constraint: strings.TrimSpace(s[idx:])}
	if err := ValidateName(r.Name); err != nil {
		return Requirement{}, err
	}
	if err := ValidateConstraint(r.Constraint); err != nil {
		return Requirement{}, fmt.Errorf("%s: %w", r.Name, err)
	}
	return r, nil
}

func ValidateName(name string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("invalid package name %q", name)
	}
	return nil
}

// ValidateConstraint accepts an empty constraint or comma-separated clauses.
func ValidateConstraint(c string) error {
	c = strings.TrimSpace(c)
	if c == "" {
		return nil
	}
	for _, clause := range strings.Split(c, ",") {
		if !clauseRE.MatchString(strings.TrimSpace(clause)) {
			return fmt.Errorf("invalid version constraint %q", c)
		}
	}
	return nil
}

func ValidateModule(module string) error {
	if !moduleRE.MatchString(module) {
		return fmt.Errorf("invalid import module %q", module)
	}
	return nil
}
