package envrecord

import (
	"os"
	"strings"

	"poly-bootstrap/internal/dotenv"
)

// Record is the merged view of one environment file and the process
// environment. A variable already set in the process wins, the way the bot's
// dotenv loader leaves existing variables alone.
type Record struct {
	Path  string
	Found bool

	values map[string]string
	source map[string]string
}

const (
	SourceFile    = "file"
	SourceProcess = "process"
	SourceDefault = "default"
)

// Load reads path (a missing file is an empty record), then lets every
// documented key that lookup reports as set replace the file value. lookup
// defaults to os.LookupEnv.
func Load(path string, lookup func(string) (string, bool)) (*Record, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if strings.TrimSpace(path) == "" {
		path = dotenv.DefaultPath
	}
	fileVals, found, err := dotenv.Read(path)
	if err != nil {
		return nil, err
	}
	r := &Record{
		Path:   path,
		Found:  found,
		values: make(map[string]string, len(Keys)),
		source: make(map[string]string, len(Keys)),
	}
	for k, v := range fileVals {
		r.values[k] = strings.TrimSpace(v)
		r.source[k] = SourceFile
	}
	for _, k := range Keys {
		if v, ok := lookup(k.Name); ok {
			r.values[k.Name] = strings.TrimSpace(v)
			r.source[k.Name] = SourceProcess
		}
	}
	return r, nil
}

// Get returns the value for key, falling back to the documented default.
func (r *Record) Get(key string) string {
	if v := r.values[key]; v != "" {
		return v
	}
	if k, ok := lookupKey(key); ok {
		return k.Default
	}
	return ""
}

// Source reports where Get's value came from, or "" when unset.
func (r *Record) Source(key string) string {
	if r.values[key] != "" {
		return r.source[key]
	}
	if k, ok := lookupKey(key); ok && k.Default != "" {
		return SourceDefault
	}
	return ""
}

// Masked renders a value safe for printing.
func Masked(key, value string) string {
	switch key {
	case KeyPrivateKey, KeySecret, KeyPassphrase, KeyBotToken, KeyAPIKey:
	default:
		return value
	}
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "…" + value[len(value)-4:]
}
