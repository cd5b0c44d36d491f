package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	api     string
	user    string
	timeout time.Duration
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "plantctl",
		Short:         "CLI client for the PlantPal REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVarP(&opts.api, "api", "a", "http://localhost:8080", "PlantPal service base URL")
	rootCmd.PersistentFlags().StringVarP(&opts.user, "user", "u", "", "User ID")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	// run issues one request and prints the raw JSON response.
	run := func(cmd *cobra.Command, needUser bool, call func(c *apiClient, base string) ([]byte, error)) error {
		if needUser && opts.user == "" {
			return fmt.Errorf("--user required")
		}
		c := newAPIClient(opts.api, opts.timeout)
		data, err := call(c, "/api/users/"+opts.user)
		if err != nil {
			return err
		}
		if len(data) > 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		}
		return nil
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Show service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, false, func(c *apiClient, _ string) ([]byte, error) {
				return c.get(cmd.Context(), "/api/health", nil)
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show plant stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, true, func(c *apiClient, base string) ([]byte, error) {
				return c.get(cmd.Context(), base+"/stats", nil)
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "checkin",
		Short: "Record the daily check-in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, true, func(c *apiClient, base string) ([]byte, error) {
				return c.post(cmd.Context(), base+"/checkins", nil)
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "chat MESSAGE",
		Short: "Send a chat message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, true, func(c *apiClient, base string) ([]byte, error) {
				return c.post(cmd.Context(), base+"/conversations", map[string]string{"message": args[0]})
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "complete",
		Short: "Record a completed conversation without chatting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, true, func(c *apiClient, base string) ([]byte, error) {
				return c.post(cmd.Context(), base+"/conversations/completed", nil)
			})
		},
	})

	rootCmd.AddCommand(newMoodCmd(run))

	rootCmd.AddCommand(&cobra.Command{
		Use:   "achievements",
		Short: "List achievements with progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, true, func(c *apiClient, base string) ([]byte, error) {
				return c.get(cmd.Context(), base+"/achievements", nil)
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "analytics",
		Short: "Show mood analytics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, true, func(c *apiClient, base string) ([]byte, error) {
				return c.get(cmd.Context(), base+"/analytics", nil)
			})
		},
	})

	rootCmd.AddCommand(newDataCmd(opts, run))
	return rootCmd
}

type runFunc func(cmd *cobra.Command, needUser bool, call func(c *apiClient, base string) ([]byte, error)) error

func newMoodCmd(run runFunc) *cobra.Command {
	moodCmd := &cobra.Command{Use: "mood", Short: "Mood operations"}

	var mood, notes string
	var intensity int
	var triggers []string
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Log a mood entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"mood": mood, "intensity": intensity}
			if notes != "" {
				payload["notes"] = notes
			}
			if len(triggers) > 0 {
				payload["triggers"] = triggers
			}
			return run(cmd, true, func(c *apiClient, base string) ([]byte, error) {
				return c.post(cmd.Context(), base+"/moods", payload)
			})
		},
	}
	logCmd.Flags().StringVarP(&mood, "mood", "m", "", "Mood (required)")
	logCmd.Flags().IntVarP(&intensity, "intensity", "i", 5, "Intensity 1-10")
	logCmd.Flags().StringVarP(&notes, "notes", "n", "", "Free-text notes")
	logCmd.Flags().StringSliceVarP(&triggers, "trigger", "t", nil, "Trigger tag (repeatable)")
	_ = logCmd.MarkFlagRequired("mood")
	moodCmd.AddCommand(logCmd)

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent mood entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			var q map[string]string
			if limit > 0 {
				q = map[string]string{"limit": strconv.Itoa(limit)}
			}
			return run(cmd, true, func(c *apiClient, base string) ([]byte, error) {
				return c.get(cmd.Context(), base+"/moods", q)
			})
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum entries")
	moodCmd.AddCommand(listCmd)
	return moodCmd
}
