package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Chichichkin/TelemetryAgent/internal/config"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/queue"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/store"
)

var inspectStorePath string

func init() {
	inspectCmd.Flags().StringVar(&inspectStorePath, "store", "", "store file to read, defaults to TELEMETRY_STORE_PATH")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print what is waiting in the on-disk queues",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := inspectStorePath
		if path == "" {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			path = cfg.StorePath
		}

		st, err := store.OpenSQLite(path)
		if err != nil {
			return err
		}
		defer st.Close()

		return inspectStore(cmd.OutOrStdout(), st)
	},
}

func inspectStore(w io.Writer, st telemetry.Store) error {
	deviceID, _, err := store.Load[string](st, telemetry.KeyDeviceID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "device: %s\n", deviceID)

	for _, q := range []*queue.Queue{
		queue.Events(st, queue.Config{}),
		queue.Logs(st, queue.Config{}),
	} {
		if err := q.Restore(); err != nil {
			fmt.Fprintf(w, "%s: skipped unreadable state: %v\n", q.Name(), err)
		}
		fmt.Fprintf(w, "%-7s pending=%d next_index=%d\n", q.Name()+":", q.Len(), q.NextIndex())
	}
	return nil
}
