// Package app implements skylark-ctl, the operator CLI for inspecting a
// running skylark-exec daemon over its read-only status endpoint.
package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/skylark-uav/skylark/internal/exec"
	"github.com/skylark-uav/skylark/internal/topics"
)

// NewCommand builds the skylark-ctl root command.
func NewCommand() *cobra.Command {
	var server string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:          "skylark-ctl",
		Short:        "Inspect a running Skylark supervisory core",
		SilenceUsage: true,
	}
	fs := cmd.PersistentFlags()
	fs.StringVarP(&server, "server", "s", "http://127.0.0.1:8460", "Base URL of the skylark-exec status server.")
	fs.DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout.")

	cmd.AddCommand(newStatusCommand(&server, &timeout))
	cmd.AddCommand(newTopicsCommand(&server, &timeout))
	return cmd
}

func newStatusCommand(server *string, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current stage of both supervisors",
		RunE: func(cmd *cobra.Command, args []string) error {
			var st exec.Status
			if err := fetch(*server, "/v1/status", *timeout, &st); err != nil {
				return err
			}

			table := uitable.New()
			table.AddRow("MACHINE", "STAGE", "TERMINAL", "TASKS")
			table.AddRow(st.Exec.Name, st.Exec.Stage, fmt.Sprintf("%t", st.Exec.Terminal), strings.Join(st.Exec.Tasks, ","))
			if st.Auto != nil {
				table.AddRow(st.Auto.Name, st.Auto.Stage, fmt.Sprintf("%t", st.Auto.Terminal), strings.Join(st.Auto.Tasks, ","))
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newTopicsCommand(server *string, timeout *time.Duration) *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "Show the health topic snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []topics.Entry
			if err := fetch(*server, "/v1/topics", *timeout, &entries); err != nil {
				return err
			}

			table := uitable.New()
			table.AddRow("KEY", "VALUE", "VERSION", "TIMESTAMP")
			for _, e := range entries {
				table.AddRow(string(e.Key), fmt.Sprintf("%v", e.Data), e.Version, e.Timestamp.Format(time.RFC3339))
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func fetch(server, path string, timeout time.Duration, out any) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(strings.TrimRight(server, "/") + path)
	if err != nil {
		return fmt.Errorf("query %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query %s: unexpected status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
