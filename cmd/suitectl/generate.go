package main

import (
	"net/url"

	"github.com/spf13/cobra"
	"github.com/testkube/suiterunner/internal/generator"
	"github.com/testkube/suiterunner/internal/suitefile"
)

func newGenerateCmd() *cobra.Command {
	var (
		username string
		password string
		output   string
		name     string
	)

	cmd := &cobra.Command{
		Use:   "generate <url>",
		Short: "Generate a starter suite for a website",
		Long: `Generate derives a fixed set of api, security, performance, ui, unit
and database tests from a website URL. When both --username and --password
are given, login tests are appended.`,
		Example: `  suitectl generate https://example.com -o suite.yaml
  suitectl generate https://example.com --username demo --password secret`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var creds *generator.Credentials
			if username != "" || password != "" {
				creds = &generator.Credentials{Username: username, Password: password}
			}

			decls, err := generator.Generate(args[0], creds)
			if err != nil {
				return err
			}

			if name == "" {
				if u, err := url.Parse(args[0]); err == nil {
					name = u.Hostname()
				}
			}
			f := &suitefile.File{Name: name, Tests: decls}

			if output == "" {
				return suitefile.Encode(cmd.OutOrStdout(), f)
			}
			if err := suitefile.Save(output, f); err != nil {
				return err
			}
			cmd.Printf("Wrote %d tests to %s\n", len(decls), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login username for the generated login tests")
	cmd.Flags().StringVar(&password, "password", "", "login password for the generated login tests")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the suite to this file instead of stdout")
	cmd.Flags().StringVar(&name, "name", "", "suite name (defaults to the URL host)")
	return cmd
}
