package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"chainstate/internal/config"
	"chainstate/internal/logging"
)

// commandOptions holds the flags shared by every subcommand.
type commandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chainstate",
		Short:         "Chain state synchronization service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to chainstate.yaml or chainstate.toml")

	cmd.AddCommand(newServeCmd(), newSnapshotsCmd())
	return cmd
}

func getOptions(cmd *cobra.Command) commandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return commandOptions{ConfigFile: configFile, Verbose: verbose, JSONOutput: jsonOutput}
}

// loadConfig resolves the config file from the flag or by walking up from
// the working directory, then configures logging from it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	opts := getOptions(cmd)
	path := opts.ConfigFile
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return config.Config{}, err
		}
		if path, err = config.FindConfigFile(cwd); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Verbose {
		cfg.Log.Level = logrus.DebugLevel.String()
	}
	if opts.JSONOutput {
		cfg.Log.Format = "json"
	}
	logging.Configure(cfg.Log, cmd.ErrOrStderr())
	if path != "" {
		logging.New("cli").WithField("path", path).Debug("configuration loaded")
	}
	return cfg, nil
}
