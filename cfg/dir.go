// Package cfg resolves the on-disk state directory and the environment-variable
// override for the assembler's default probe timeout.
package cfg

import (
	"os"
	"path/filepath"
	"strconv"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/inetrg/spoki/printer"
)

var cfgDir string

// Dir name under $HOME holding any persistent state (currently only the
// assembler's persisted run id).
const dirName = ".spoki"

func init() {
	initCfgDir()
}

func initCfgDir() {
	home, err := homedir.Dir()
	if err != nil {
		printer.Stderr.Warningf("Failed to find $HOME, defaulting to '.', error: %v", err)
		home = "."
	}
	cfgDir = filepath.Join(home, dirName)

	if stat, err := os.Stat(cfgDir); os.IsNotExist(err) {
		if err := os.Mkdir(cfgDir, 0700); err != nil {
			printer.Stderr.Warningf("Failed to create config directory %s, persistent config will not work, error: %v\n", cfgDir, err)
		}
	} else if err != nil {
		printer.Stderr.Errorf("Failed to stat %s: %v\n", cfgDir, err)
	} else if !stat.IsDir() {
		printer.Stderr.Errorf("%s is not a directory, please remove.\n", cfgDir)
	}
}

// Dir returns the resolved state directory, e.g. ~/.spoki.
func Dir() string {
	return cfgDir
}

// DurationMinutesEnv reads an environment variable as a count of minutes,
// falling back to def when unset or unparseable.
func DurationMinutesEnv(name string, def int) int {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		printer.Stderr.Warningf("%s=%q is not an integer, using default %d\n", name, raw, def)
		return def
	}
	return n
}
