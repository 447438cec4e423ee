// devices.go — подкоманда перечисления устройств захвата.
package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Jhonny-Kenneth/lector-id/internal/acquire"
	"github.com/Jhonny-Kenneth/lector-id/internal/acquire/gstcap"
)

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Перечислить доступные устройства захвата",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			manager := acquire.NewManager(gstcap.New(logger), logger)

			devices, err := manager.ListDevices(cmd.Context())
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Устройства захвата не найдены")
				return nil
			}
			for _, d := range devices {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", d.ID, d.Label)
			}
			return nil
		},
	}
}
