package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/handler"
)

var (
	configFile     string
	envFile        string
	connectionName string
	outputFormat   string
	logLevel       string
	callLogFile    string
)

var rootCmd = &cobra.Command{
	Use:   "resttable",
	Short: "Query REST platform services as tables",
	Long: "resttable exposes the resources of UiPath platform services (context service, data service, " +
		"integration service) as queryable tables and runs their administrative commands.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("logrus.ParseLevel: %w", err)
		}
		logrus.SetLevel(level)
		logrus.SetOutput(os.Stderr)

		// a missing default env file is fine
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
			return fmt.Errorf("godotenv.Load: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "connections.yaml", "Path to the connections file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file loaded before the connections")
	rootCmd.PersistentFlags().StringVarP(&connectionName, "connection", "c", "", "Name of the connection to use (defaults to the first one)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json or csv")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warning", "Log level")
	rootCmd.PersistentFlags().StringVar(&callLogFile, "call-log", "", "Append the call history to this file (JSON Lines)")

	rootCmd.AddCommand(checkCmd, tablesCmd, columnsCmd, selectCmd, insertCmd, nativeCmd)
}

// newHandler registers every connection of the config file.
func newHandler() (*handler.Handler, error) {
	configs, err := loadConnections(configFile)
	if err != nil {
		return nil, err
	}

	h := handler.New(
		handler.WithLogger(logrus.StandardLogger()),
		handler.WithCallLog(callLogFile),
	)
	var first core.ConnectionID
	for i, cfg := range configs {
		id, err := h.CreateConnection(cfg)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("connection %q: %w", cfg.Name, err)
		}
		if i == 0 {
			first = id
		}
	}
	// the first connection is the default one
	if err := h.SetCurrentConnection(first); err != nil {
		h.Close()
		return nil, err
	}

	return h, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
