package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/mortality-audit/internal/records"
)

var sampleOutput string

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write the sample CSV template showing every recognized column",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := records.SampleCSV()
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), sampleOutput, data, "sample template")
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().StringVarP(&sampleOutput, "output", "o", records.SampleFileName, "destination path ('-' for stdout)")
}
