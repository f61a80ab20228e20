package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Chichichkin/TelemetryAgent/internal/config"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/client"
)

var (
	trackCategory   string
	trackProperties map[string]string
)

func init() {
	trackCmd.Flags().StringVar(&trackCategory, "category", "cli", "event category")
	trackCmd.Flags().StringToStringVarP(&trackProperties, "property", "p", nil, "event property as key=value, repeatable")
	rootCmd.AddCommand(trackCmd)
}

var trackCmd = &cobra.Command{
	Use:   "track [event-name]",
	Short: "Queue one event and flush it to the collector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		c, st, err := openClient(cfg, logger, client.WithLifecycleEvents(false))
		if err != nil {
			return err
		}
		defer st.Close()

		props := make(map[string]any, len(trackProperties))
		for k, v := range trackProperties {
			props[k] = v
		}
		if err := c.Event(trackCategory, args[0], props); err != nil {
			c.Close()
			return err
		}

		drain(c, cfg.ShutdownTimeout, logger)
		if !c.Ready() && c.Pending(telemetry.EventQueue) == 0 {
			return errors.New("collector rejected the api key")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued %q, %d event(s) still pending\n", args[0], c.Pending(telemetry.EventQueue))
		return nil
	},
}
