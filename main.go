package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "worklog",
	Short: "Work-log and shift-schedule tracking server with a kanban board",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "worklog.yaml", "path to the config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importShiftsCmd)
	rootCmd.AddCommand(exportShiftsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
