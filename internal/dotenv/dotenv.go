package dotenv

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// DefaultPath is the record file the trading program reads at startup.
const DefaultPath = ".env"

// Read parses the file without touching the environment. found is false when
// the file does not exist.
func Read(path string) (values map[string]string, found bool, err error) {
	if path == "" {
		path = DefaultPath
	}
	values, err = godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return values, true, nil
}
