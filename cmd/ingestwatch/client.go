package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hamed0406/ingestwatch/internal/domain"
)

// apiClient talks to a running "ingestwatch run".
type apiClient struct {
	base string
	key  string
	http *http.Client
}

func clientFlags(cmd *cobra.Command) *apiClient {
	c := &apiClient{http: &http.Client{Timeout: 2 * time.Minute}}
	base := os.Getenv("API_BASE")
	if base == "" {
		base = "http://localhost:8080"
	}
	cmd.Flags().StringVar(&c.base, "api", base, "admin API base URL (env API_BASE)")
	cmd.Flags().StringVar(&c.key, "key", os.Getenv("API_KEY"), "API key (env API_KEY)")
	return c
}

func (c *apiClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.base, "/")+path, nil)
	if err != nil {
		return err
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("API returned %s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("API returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func printSnapshot(w io.Writer, snap domain.Snapshot) {
	cursor := "not bootstrapped"
	if snap.Cursor != nil {
		cursor = strconv.FormatInt(*snap.Cursor, 10)
	}
	lastReset := "never"
	if !snap.LastReset.IsZero() {
		lastReset = snap.LastReset.Local().Format(time.DateTime)
	}
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Item", "Value"})
	t.AppendBulk([][]string{
		{"Source cursor", cursor},
		{"Last activity", snap.LastActivity.Local().Format(time.DateTime)},
		{"Failure level reported", snap.HighestLevel.String()},
		{"Port alarms today", fmt.Sprintf("%d/%d", snap.PortAlarmsToday, snap.PortAlarmLimit)},
		{"Last reset", lastReset},
	})
	t.Render()
}

func stateCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the engine state of a running monitor",
		Args:  cobra.NoArgs,
	}
	c := clientFlags(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		var snap domain.Snapshot
		if err := c.do(cmd.Context(), http.MethodGet, "/api/state", &snap); err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	}
	return cmd
}

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Run the daily reset now (admin key)",
		Args:  cobra.NoArgs,
	}
	c := clientFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		var snap domain.Snapshot
		if err := c.do(cmd.Context(), http.MethodPost, "/api/reset", &snap); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Daily counters reset.")
		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	}
	return cmd
}

func triggerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger <check>",
		Short: "Run a check now inside a running monitor (admin key)",
		Args:  cobra.ExactArgs(1),
	}
	c := clientFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		var out struct {
			Check      string `json:"check"`
			DurationMS int64  `json:"duration_ms"`
		}
		if err := c.do(cmd.Context(), http.MethodPost, "/api/checks/"+args[0]+"/run", &out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Check %s finished in %d ms.\n", out.Check, out.DurationMS)
		return nil
	}
	return cmd
}
