package assemble

import (
	"github.com/inetrg/spoki/cfg"
	"github.com/inetrg/spoki/location"
)

var (
	// Required flags.
	startDateFlag  string
	datasourceFlag string

	// Optional flags.
	hourFlag           int
	probeTimeoutFlag   int
	phaseTimeoutFlag   int
	endDateFlag        string
	kafkaPortFlag      int
	kafkaBatchSizeFlag int
	outputFlag         location.Location
	s3BucketFlag       string
	s3EndpointFlag     string
	healthAddrFlag     string
	sleepSecondsFlag   int

	// Flags.
	swiftFlag      bool
	kafkaFlag      bool
	compressedFlag bool
	csvFlag        bool
)

func init() {
	//
	// Required flags.
	//
	Cmd.Flags().StringVarP(
		&startDateFlag,
		"start-date", "s",
		"",
		"process data starting at this day (YYYY-MM-DD)")

	Cmd.Flags().StringVarP(
		&datasourceFlag,
		"datasource", "d",
		"",
		"match phases for this datasource")

	//
	// Optional flags.
	//
	Cmd.Flags().IntVarP(
		&hourFlag,
		"hour", "H",
		0,
		"skip the first N hours of the first day")

	Cmd.Flags().IntVarP(
		&probeTimeoutFlag,
		"probe-timeout", "t",
		cfg.DurationMinutesEnv("SPOKI_PROBE_TIMEOUT_MINUTES", 5),
		"max interval between a request and its confirmation, in minutes")

	Cmd.Flags().IntVarP(
		&phaseTimeoutFlag,
		"phase-timeout", "P",
		600,
		"max interval between two phases, in seconds")

	Cmd.Flags().StringVarP(
		&endDateFlag,
		"end-date", "e",
		"",
		"process data until this day (YYYY-MM-DD); default is one day after --start-date")

	Cmd.Flags().IntVarP(
		&kafkaPortFlag,
		"kafka-port", "k",
		9092,
		"port of the local kafka server")

	Cmd.Flags().IntVar(
		&kafkaBatchSizeFlag,
		"kafka-batch-size",
		1000,
		"batch size for sending produced events")

	_ = outputFlag.Set(".")
	Cmd.Flags().VarP(
		&outputFlag,
		"output", "o",
		"output location for the non-kafka writer: a local directory, or an s3://bucket/prefix URI")

	Cmd.Flags().StringVar(
		&s3BucketFlag,
		"s3-bucket",
		"",
		"bucket to read archived data from when --swift is set")

	Cmd.Flags().StringVar(
		&s3EndpointFlag,
		"s3-endpoint",
		"",
		"S3-compatible endpoint to use for --swift input (default: AWS)")

	Cmd.Flags().StringVar(
		&healthAddrFlag,
		"health-addr",
		"",
		"address to serve /health and /metrics on (default: disabled)")

	Cmd.Flags().IntVar(
		&sleepSecondsFlag,
		"sleep-seconds",
		5,
		"time to sleep between polls when no new data is available")

	//
	// Flags.
	//
	Cmd.Flags().BoolVar(
		&swiftFlag,
		"swift",
		false,
		"read data from an S3-compatible object store instead of local disk")

	Cmd.Flags().BoolVar(
		&kafkaFlag,
		"kafka",
		false,
		"write results to kafka instead of to logs on disk (not available in this build: selecting it makes the run fail)")

	Cmd.Flags().BoolVar(
		&compressedFlag,
		"compressed",
		false,
		"read gzip compressed files from disk")

	Cmd.Flags().BoolVar(
		&csvFlag,
		"csv",
		true,
		"read CSV input files instead of JSON")
}
