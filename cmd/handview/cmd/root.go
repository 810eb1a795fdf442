package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xReLogic/handview/internal/config"
)

const defaultConfigFile = "handview.yaml"

var (
	configPath string
	flagHost   string
	flagPort   int
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:           "handview",
	Short:         "Hand gesture recognition page server",
	Long:          "Serves the gesture recognition page rendered from its template, plus the static assets it loads.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	bindGlobalFlags(rootCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routesCmd)
}

func bindGlobalFlags(c *cobra.Command) {
	pf := c.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "path to YAML config (default: ./"+defaultConfigFile+" if present)")
	pf.StringVar(&flagHost, "host", "", "interface to bind (default: "+config.DefaultHost+", use 0.0.0.0 for all)")
	pf.IntVarP(&flagPort, "port", "p", config.DefaultPort, "port to listen on")
	pf.BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

// loadConfig resolves the configuration: file (explicit or ./handview.yaml),
// defaults otherwise, then command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = flagHost
	}
	if flags.Changed("port") {
		cfg.Server.Port = flagPort
	}
	if flags.Changed("debug") {
		cfg.Server.Debug = flagDebug
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
