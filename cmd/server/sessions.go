package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"radzz.ai/chat-orchestrator/internal/config"
	"radzz.ai/chat-orchestrator/internal/store"
)

var sessionsJSON bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved chat sessions, most recent first",
	RunE:  runSessionsList,
}

func init() {
	sessionsCmd.Flags().BoolVar(&sessionsJSON, "json", false, "print the raw session records")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	kv, err := openKV(config.AppConfig)
	if err != nil {
		return err
	}
	defer kv.Close()

	sessions := store.NewAdapter(kv, log).LoadSessions()
	out := cmd.OutOrStdout()

	if sessionsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No saved sessions found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tCREATED")
	now := time.Now()
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.Title, len(s.Messages), humanize.RelTime(s.CreatedAt, now, "ago", "from now"))
	}
	return tw.Flush()
}
