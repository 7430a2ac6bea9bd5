// Package synth implements the "synth" subcommand, which writes small,
// hand-crafted log streams for the three canned scan scenarios the
// assemble pipeline is meant to recognize, for testing without a live
// capture.
package synth

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/inetrg/spoki/cmd/internal/cmderr"
	"github.com/inetrg/spoki/printer"
	"github.com/inetrg/spoki/synth"
)

var Cmd = &cobra.Command{
	Use:          "synth",
	Short:        "Write synthetic honeypot log streams for a canned scan scenario.",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dateStr := startDateFlag
		if dateStr == "" {
			dateStr = time.Now().UTC().Format("2006-01-02")
		}
		startDate, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
		if err != nil {
			return errors.Wrap(err, "parsing --start-date")
		}
		hour := startDate.Add(time.Duration(hourFlag) * time.Hour)

		res, err := synth.Generate(scenarioFlag, hour.Add(5*time.Minute))
		if err != nil {
			return cmderr.AssemblerErr{Err: err}
		}

		if err := synth.Write(afero.NewOsFs(), outDirFlag, datasourceFlag, hour, res); err != nil {
			return cmderr.AssemblerErr{Err: err}
		}

		printer.Stdout.Infof("wrote %q scenario for datasource %q to %q\n", scenarioFlag, datasourceFlag, outDirFlag)
		return nil
	},
}
