// Package assemble implements the "assemble" subcommand, which reads
// honeypot packet, probe, and confirmation log streams for one datasource
// and writes matched scan/loader events.
package assemble

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/inetrg/spoki/assembler"
	"github.com/inetrg/spoki/cmd/internal/cmderr"
	"github.com/inetrg/spoki/env"
)

var Cmd = &cobra.Command{
	Use:          "assemble LOG_DIR",
	Short:        "Assemble multi-phase scan events from honeypot log streams.",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(args[0])
		if err != nil {
			return err
		}

		if err := assembler.Run(cmd.Context(), cfg); err != nil {
			return cmderr.AssemblerErr{Err: err}
		}
		return nil
	},
}

func buildConfig(logDir string) (assembler.Config, error) {
	if startDateFlag == "" {
		return assembler.Config{}, errors.New("-s/--start-date is required")
	}
	if datasourceFlag == "" {
		return assembler.Config{}, errors.New("-d/--datasource is required")
	}

	startDate, err := parseDate(startDateFlag)
	if err != nil {
		return assembler.Config{}, errors.Wrap(err, "parsing --start-date")
	}
	startHour := time.Date(
		startDate.Year(), startDate.Month(), startDate.Day(),
		hourFlag, 0, 0, 0, time.UTC,
	)

	var endDate time.Time
	if endDateFlag != "" {
		endDate, err = parseDate(endDateFlag)
		if err != nil {
			return assembler.Config{}, errors.Wrap(err, "parsing --end-date")
		}
	} else {
		endDate = startDate.Add(24 * time.Hour)
	}

	var outDir string
	if !kafkaFlag {
		if outputFlag.ObjectStore != nil {
			return assembler.Config{}, errors.New("-o/--output does not support s3:// destinations; write to a local directory")
		}
		if outputFlag.LocalPath == nil || *outputFlag.LocalPath == "" {
			return assembler.Config{}, errors.New("-o/--output is required when writing to logs")
		}
		outDir = *outputFlag.LocalPath
	}

	return assembler.Config{
		LogDir:       logDir,
		OutDir:       outDir,
		Datasource:   datasourceFlag,
		StartHour:    startHour,
		EndDate:      endDate,
		ProbeTimeout: time.Duration(probeTimeoutFlag) * time.Minute,
		PhaseTimeout: time.Duration(phaseTimeoutFlag) * time.Second,
		Compressed:   compressedFlag,
		CSV:          csvFlag,

		UseSwift:   swiftFlag,
		S3Bucket:   s3BucketFlag,
		S3Endpoint: s3EndpointFlag,

		UseKafka:       kafkaFlag,
		KafkaBrokers:   []string{kafkaHost() + ":" + strconv.Itoa(kafkaPortFlag)},
		KafkaTopic:     "cse2.malware.events." + datasourceFlag,
		KafkaBatchSize: kafkaBatchSizeFlag,

		HealthAddr:   healthAddrFlag,
		SleepSeconds: sleepSecondsFlag,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

// kafkaHost picks the broker host to pair with --kafka-port. Inside the
// official docker image "localhost" refers to the container itself, not
// the host running kafka, so fall back to Docker Desktop's internal
// hostname when it resolves.
func kafkaHost() string {
	if env.InDocker() && env.HasDockerInternalHostAddress() {
		return "host.docker.internal"
	}
	return "localhost"
}
