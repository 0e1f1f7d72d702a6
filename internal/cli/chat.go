package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/arief/naia/internal/config"
	"github.com/arief/naia/internal/logger"
	"github.com/arief/naia/pkg/agent"
	"github.com/arief/naia/pkg/provider"
)

var chatSessionID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session on the terminal. Each line is
one message; responses stream as the model produces them. Commands:
/clear drops the conversation, /usage shows token totals, /quit exits.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "session id (default: generated)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	lg, err := logger.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	defer lg.Close()

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.cleanup.Start(); err != nil {
		return err
	}

	serveMetrics(cfg)

	if cfgFile != "" {
		watcher, err := config.NewWatcher(cfgFile, rt.reload)
		if err != nil {
			log.Warn().Err(err).Msg("Config hot reload unavailable")
		} else if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Config hot reload unavailable")
		} else {
			defer watcher.Stop()
		}
	}

	sessionID := chatSessionID
	if sessionID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		sessionID = "cli-" + id
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "naia %s (session %s)\n", version, sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := rt.sessions.Clear(sessionID); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				fmt.Fprintln(out, "conversation cleared")
			}
			continue
		case "/usage":
			totals := rt.tracker.ForSession(sessionID)
			fmt.Fprintf(out, "tokens: %d in, %d out, %d total\n",
				totals.InputTokens, totals.OutputTokens, totals.TotalTokens)
			continue
		}

		if err := streamExchange(cmd.Context(), rt, sessionID, line, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}

	return scanner.Err()
}

// streamExchange runs one exchange and renders its events.
func streamExchange(ctx context.Context, rt *runtime, sessionID, line string, out io.Writer) error {
	events, err := rt.currentAgent().ChatStream(ctx, sessionID, "cli", line)
	if err != nil {
		return err
	}

	var exchangeUsage *provider.TokenUsage
	for ev := range events {
		switch ev.Type {
		case agent.EventContent:
			if ev.Content != "" {
				fmt.Fprint(out, ev.Content)
			} else if ev.Model != "" {
				fmt.Fprintf(out, "[%s]\n", ev.Model)
			}
		case agent.EventToolStart:
			fmt.Fprintf(out, "\n[tool] %s %s\n", ev.ToolCall.Name, ev.ToolCall.Arguments)
		case agent.EventToolEnd:
			fmt.Fprintf(out, "[tool] %s -> %s\n", ev.ToolCall.Name, truncate(ev.ToolResult, 200))
		case agent.EventDone:
			exchangeUsage = ev.Usage
		case agent.EventError:
			fmt.Fprintln(out)
			return ev.Err
		}
	}
	fmt.Fprintln(out)

	// Persist this exchange's consumption for later inspection.
	if rt.store != nil && exchangeUsage != nil && exchangeUsage.TotalTokens > 0 {
		if err := rt.store.Record(sessionID, "exchange", *exchangeUsage); err != nil {
			log.Warn().Err(err).Msg("Failed to persist usage")
		}
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
