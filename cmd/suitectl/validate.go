package main

import (
	"github.com/spf13/cobra"
	"github.com/testkube/suiterunner/internal/registry"
	"github.com/testkube/suiterunner/internal/suitefile"
)

func newValidateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a suite file without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := suitefile.Load(file)
			if err != nil {
				return err
			}
			if _, err := registry.New().AddAll(f.Tests); err != nil {
				return err
			}
			cmd.Printf("%s: %d tests OK\n", file, len(f.Tests))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "suite file to validate")
	cmd.MarkFlagRequired("file")
	return cmd
}
