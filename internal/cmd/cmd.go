package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Jetson999/imu-reader-go/internal/app"
	"github.com/Jetson999/imu-reader-go/internal/config"
)

var RootCmd = &cobra.Command{
	Use:   "imureader",
	Short: "serial IMU protocol driver with hotplug recovery",
	Long:  "serial IMU protocol driver with hotplug recovery",
}

func ServeCmdRunE(cmd *cobra.Command, args []string) error {
	app.NewMainApp(cmd, args).PrepareRun().Run()
	return nil
}

func ServeCmdFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "default configuration path")
	cmd.Flags().StringP("port", "p", config.DefaultPort, "serial port the IMU is attached to")
	cmd.Flags().IntP("baud", "b", config.DefaultBaud, "serial baud rate")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
}

var ServeCmd = &cobra.Command{
	Use: "serve",
	SuggestFor: []string{
		"ru", "ser",
	},
	Short: "serve reads the IMU and prints decoded samples.",
	Long: `serve reads the IMU and prints decoded samples, by the following order:
1. path specified in --config flag
2. path defined IMUREADER_CONFIG environment variable
3. default location $HOME/.config/imureader/config.yaml, /etc/imureader/config.yaml, current directory
The parameters in the configuration file will be overwritten by the following order:
1. command line arguments
2. environment variables
`,
	Example: `  imureader serve --config=/path/to/config`,
	RunE:    ServeCmdRunE,
}

func InitCmdFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("print", false, "print config to stdout")
	cmd.Flags().BoolP("yes", "y", false, "overwrite")
	cmd.Flags().StringP("output", "o", config.DefaultConfig, "specify output directory")
}

var InitCmd = &cobra.Command{
	Use: "init",
	SuggestFor: []string{
		"ini", "in",
	},
	Short: "init create a configuration template",
	Long: `init create a configuration template.
The configuration file can be used to launch the IMU reader.
If --print flag is present, the configuration will be printed to stdout.
If --output / -o flag is present, the configuration will be saved to the path specified
Otherwise init will output configuration file to $HOME/.config/imureader/config.yaml
If --yes / -y flag is present, the configuration will be overwrite without confirmation
`,
	Example: `  imureader init --print
  imureader init --output /path/to/config.yaml
  imureader init -o /path/to/config.yaml -y`,
	RunE: config.InitCfg,
}

var ProbeCmd = &cobra.Command{
	Use: "probe",
	SuggestFor: []string{
		"pro", "pr", "prob",
	},
	Short: "probe the compatible devices",
	Long: `probe the compatible devices.
The probe command will scan the serial ports for streaming IMUs and print the result to stdout.
Warning: only IMUs running at the configured baud-rate can be detected.
`,
	Example: `  imureader probe`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = app.NewMainApp(cmd, args).PrepareRun().ProbeSensor()
	},
}

func getRootCmd() *cobra.Command {

	ServeCmdFlags(ServeCmd)
	RootCmd.AddCommand(ServeCmd)

	InitCmdFlags(InitCmd)
	RootCmd.AddCommand(InitCmd)

	ServeCmdFlags(ProbeCmd)
	RootCmd.AddCommand(ProbeCmd)

	return RootCmd
}

func Execute() {
	rootCmd := getRootCmd()
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
