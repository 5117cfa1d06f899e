package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envPort := os.Getenv("PORT")
	if envPort == "" {
		envPort = "8080"
	}
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:   "quizzer-session",
		Short: "Real-time multiplayer quiz session orchestrator",
	}

	cmd.PersistentFlags().StringVar(&port, "port", envPort, "port the hub listens on")
	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.AddCommand(NewHubCmd(&configPath, &port))
	cmd.AddCommand(NewHostCmd(&configPath))
	cmd.AddCommand(NewJoinCmd(&configPath))
	return cmd
}
