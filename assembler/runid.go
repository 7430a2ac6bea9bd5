package assembler

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/inetrg/spoki/cfg"
	"github.com/inetrg/spoki/printer"
)

const runIDFilename = "assembler-run-id"

// loadOrCreateRunID returns a stable identifier for this assembler
// deployment, persisted under cfg.Dir() so it survives restarts and can be
// correlated across a /health endpoint's history.
func loadOrCreateRunID() string {
	path := filepath.Join(cfg.Dir(), runIDFilename)

	if b, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			return id
		}
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		printer.Stderr.Warningf("could not persist run id to %q: %v\n", path, err)
	}
	return id
}
