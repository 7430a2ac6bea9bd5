package synth

var (
	scenarioFlag   string
	outDirFlag     string
	datasourceFlag string
	startDateFlag  string
	hourFlag       int
)

func init() {
	Cmd.Flags().StringVar(
		&scenarioFlag,
		"scenario",
		"isyn",
		"scan scenario to generate: isyn, two-phase-no-ack, two-phase")

	Cmd.Flags().StringVar(
		&outDirFlag,
		"out-dir",
		".",
		"directory to write the synthetic log files to")

	Cmd.Flags().StringVar(
		&datasourceFlag,
		"datasource",
		"synth",
		"datasource name to stamp the generated log files with")

	Cmd.Flags().StringVar(
		&startDateFlag,
		"start-date",
		"",
		"day the generated hour falls on (YYYY-MM-DD); default is today (UTC)")

	Cmd.Flags().IntVar(
		&hourFlag,
		"hour",
		0,
		"hour of --start-date to anchor the scenario to")
}
