package pyruntime

import (
	"fmt"
	"regexp"
	"strconv"
)

// Version is a CPython release number. Micro is zero when not reported.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Micro int `json:"micro"`
}

// MinimumVersion is the oldest interpreter py-clob-client supports.
var MinimumVersion = Version{Major: 3, Minor: 9}

var versionRE = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// ParseVersion accepts "3.11", "3.8.10", "Python 3.12.1" and
// "3.13.0rc1"-style strings; the first dotted number wins.
func ParseVersion(s string) (Version, error) {
	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("unrecognized python version %q", s)
	}
	var v Version
	var err error
	if v.Major, err = strconv.Atoi(m[1]); err != nil {
		return Version{}, fmt.Errorf("parse major in %q: %w", s, err)
	}
	if v.Minor, err = strconv.Atoi(m[2]); err != nil {
		return Version{}, fmt.Errorf("parse minor in %q: %w", s, err)
	}
	if m[3] != "" {
		if v.Micro, err = strconv.Atoi(m[3]); err != nil {
			return Version{}, fmt.Errorf("parse micro in %q: %w", s, err)
		}
	}
	return v, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
}

// Short renders major.minor.
func (v Version) Short() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Micro, o.Micro)
	}
}

func (v Version) AtLeast(min Version) bool { return v.Compare(min) >= 0 }

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
