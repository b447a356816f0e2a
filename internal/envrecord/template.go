package envrecord

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const TemplatePath = "env.template"

// ErrExists is returned by WriteTemplate when the destination is present.
var ErrExists = errors.New("file already exists")

// Template renders the documented KEY=VALUE file. Required keys carry their
// placeholder, optional ones their default or an empty value.
func Template() string {
	var b strings.Builder
	b.WriteString("# Copy to .env and fill in the required values.\n")
	section := ""
	for _, k := range Keys {
		s := "Optional"
		if k.Required {
			s = "Required"
		}
		if s != section {
			fmt.Fprintf(&b, "\n# --- %s ---\n", s)
			section = s
		}
		fmt.Fprintf(&b, "# %s\n", k.Description)
		v := k.Placeholder
		if v == "" {
			v = k.Default
		}
		fmt.Fprintf(&b, "%s=%s\n", k.Name, v)
	}
	return b.String()
}

// WriteTemplate creates path with Template's content. It never overwrites.
func WriteTemplate(path string) error {
	if path == "" {
		path = TemplatePath
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
		return err
	}
	if _, err := io.WriteString(f, Template()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
