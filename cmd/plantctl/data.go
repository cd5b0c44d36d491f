package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newDataCmd(opts *options, run runFunc) *cobra.Command {
	dataCmd := &cobra.Command{Use: "data", Short: "Export, import or delete user data"}

	var outPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export all user data as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return run(cmd, true, func(c *apiClient, base string) ([]byte, error) {
					return c.get(cmd.Context(), base+"/export", nil)
				})
			}
			if opts.user == "" {
				return fmt.Errorf("--user required")
			}
			data, err := newAPIClient(opts.api, opts.timeout).get(cmd.Context(), "/api/users/"+opts.user+"/export", nil)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o600); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", outPath)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to file instead of stdout")
	dataCmd.AddCommand(exportCmd)

	dataCmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Replace user data with an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if !json.Valid(raw) {
				return fmt.Errorf("%s is not valid JSON", args[0])
			}
			return run(cmd, true, func(c *apiClient, base string) ([]byte, error) {
				return c.post(cmd.Context(), base+"/import", json.RawMessage(raw))
			})
		},
	})

	var yes bool
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete all user data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete without --yes")
			}
			if err := run(cmd, true, func(c *apiClient, base string) ([]byte, error) {
				return c.delete(cmd.Context(), base+"/data")
			}); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
	deleteCmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	dataCmd.AddCommand(deleteCmd)
	return dataCmd
}
