// Точка входа lector-capture — CLI оператора: захват обеих сторон
// документа, сборка PDF и передача сервису доставки.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func NewLectorCaptureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "lector-capture",
		Short:   "Захват документа, сборка PDF и отправка в сервис доставки",
		Example: "lector-capture send --front front.jpg --back back.jpg --client \"Ana Ruiz\"",
	}

	cmd.AddCommand(
		newDevicesCommand(),
		newSendCommand(),
	)

	return cmd
}

func main() {
	cmd := NewLectorCaptureCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
