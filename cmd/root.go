package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inetrg/spoki/cmd/internal/assemble"
	"github.com/inetrg/spoki/cmd/internal/cmderr"
	"github.com/inetrg/spoki/cmd/internal/synth"
	"github.com/inetrg/spoki/printer"
	"github.com/inetrg/spoki/util"
	"github.com/inetrg/spoki/version"
)

var (
	verboseCount int
	debugFlag    bool
	jsonLogsFlag bool
)

var rootCmd = &cobra.Command{
	Use:           "spoki",
	Short:         "Assembles honeypot packet, probe, and confirmation logs into scan/loader events.",
	Long:          "spoki reconstructs multi-phase TCP scan and loader interactions from hourly honeypot log streams.",
	Version:       version.CLIDisplayString(),
	SilenceErrors: true, // We print our own errors from subcommands in Execute function.
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if cmd, err := rootCmd.ExecuteC(); err != nil {
		if _, isAssemblerErr := err.(cmderr.AssemblerErr); !isAssemblerErr {
			// Print usage for CLI usage errors (e.g. missing arg) but not for
			// assembler-internal errors (e.g. failed to read a log file).
			cmd.Println(cmd.UsageString())
		}

		exitCode := 1
		var exitErr util.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode
		}
		printer.Stderr.Errorf("%s\n", err)
		os.Exit(exitCode)
	}
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verboseCount, "verbose", "v", "increase logging verbosity (repeatable)")
	viper.BindPFlag("verbose-level", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "output detailed debug information")
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.PersistentFlags().BoolVar(&jsonLogsFlag, "json-logs", false, "emit structured JSON log lines instead of colorized text")

	cobra.OnInitialize(func() {
		if jsonLogsFlag {
			printer.SwitchToJSON()
		}
	})

	rootCmd.AddCommand(assemble.Cmd)
	rootCmd.AddCommand(synth.Cmd)
}
