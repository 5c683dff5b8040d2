package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"radzz.ai/chat-orchestrator/internal/config"
	"radzz.ai/chat-orchestrator/internal/core"
	"radzz.ai/chat-orchestrator/internal/provider"
	"radzz.ai/chat-orchestrator/internal/store"
)

var (
	sendMode    string
	sendEmail   string
	sendName    string
	sendNew     bool
	sendSession string
	sendAttach  string
)

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send one message and stream the reply to stdout",
	Long: `Sends a single message through the same pipeline the HTTP API uses and
prints the reply as it streams. The exchange is saved to the configured store.

Example:
  radzz send --email ada@example.com --mode study_buddy "explain recursion"`,
	Args: cobra.ArbitraryArgs,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendMode, "mode", string(provider.ModeRadzz), "conversation mode")
	sendCmd.Flags().StringVar(&sendEmail, "email", "", "sign in with this email before sending")
	sendCmd.Flags().StringVar(&sendName, "name", "", "display name used when signing in")
	sendCmd.Flags().BoolVar(&sendNew, "new", false, "start a new session instead of continuing the latest")
	sendCmd.Flags().StringVar(&sendSession, "session", "", "continue this session id")
	sendCmd.Flags().StringVar(&sendAttach, "attach", "", "attach a local file to the message")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg := config.AppConfig
	if len(args) == 0 && sendAttach == "" {
		return errors.New("a message or --attach is required")
	}
	if cfg.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY environment variable is required")
	}
	mode, err := provider.ParseMode(sendMode)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, prometheus.NewRegistry(), log)
	if err != nil {
		return err
	}
	defer a.Close()
	svc := a.service

	if sendEmail != "" {
		if _, err := svc.Login(sendName, sendEmail, false); err != nil {
			return err
		}
	}
	switch {
	case sendNew:
		svc.StartNewSession()
	case sendSession != "":
		if err := svc.SelectSession(sendSession); err != nil {
			return err
		}
	}
	if err := svc.SetMode(ctx, mode); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var att *store.Attachment
	if sendAttach != "" {
		if att, err = attachFile(svc, sendAttach, out); err != nil {
			return describe(err)
		}
	}
	res, err := svc.Send(ctx, core.SendRequest{
		Text:       strings.Join(args, " "),
		Attachment: att,
		Observer: func(e core.Event) {
			switch e.Kind {
			case core.EventFragment:
				fmt.Fprint(out, e.Fragment)
			case core.EventMessage:
				if e.Message != nil && e.Message.Content.IsPending() && e.Message.Content.Text != "" {
					fmt.Fprintln(out, e.Message.Content.Text)
				}
			}
		},
	})
	if err != nil {
		return describe(err)
	}
	if !res.Decision.Admitted {
		return describe(res.Decision.Reason)
	}

	if res.Route != core.RouteStream && res.ModelMessage != nil {
		fmt.Fprint(out, res.ModelMessage.Content.Text)
	}
	fmt.Fprintln(out)
	if m := res.ModelMessage; m != nil {
		if m.Media != nil {
			fmt.Fprintf(out, "%s: %s\n", m.Media.Type, m.Media.URL)
		}
		for _, src := range m.Sources {
			fmt.Fprintf(out, "  [%s] %s\n", src.Title, src.URI)
		}
	}
	fmt.Fprintf(out, "session %s\n", res.SessionID)
	return nil
}

// describe prefixes err with the text the chat view would show for it.
func describe(err error) error {
	if banner := core.Banner(err); banner != "" {
		return fmt.Errorf("%s: %w", banner, err)
	}
	return err
}

type attachmentIngester interface {
	IngestAttachment(name, mimeType string, r io.Reader) (*store.Attachment, error)
}

// attachFile reads path through the service's size cap and echoes the label
// the chat view shows for it.
func attachFile(svc attachmentIngester, path string, out io.Writer) (*store.Attachment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	att, err := svc.IngestAttachment(name, mime.TypeByExtension(filepath.Ext(name)), f)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "attached %s (%s, %s)\n", att.Name, att.Type, core.FormatSize(att.Size))
	return att, nil
}
