package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [dir]",
	Short: "Write every published record as a Markdown file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	result, err := rt.service.Export(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d file(s) to %s\n", result.Written, args[0])
	return nil
}
