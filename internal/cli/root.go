package cli

import (
	"github.com/spf13/cobra"

	"github.com/lazypower/glyphwheel/internal/config"
)

var (
	configPath string
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:   "glyphwheel",
	Short: "Self-stabilizing state graph engine",
	Long: "Glyphwheel keeps a graph of weighted nodes, perturbs it under a consent gate, " +
		"heals it, and reports entropy and coherence over HTTP.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.glyphwheel/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "server URL for remote commands (default $GLYPHWHEEL_URL or http://127.0.0.1:37780)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(recalibrateCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(signalCmd)
	rootCmd.AddCommand(patternCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(ghostsCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

// loadConfig reads --config, or the default path when unset.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return config.Config{}, err
		}
	}
	return config.Load(path)
}
