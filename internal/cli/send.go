package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arief/naia/internal/config"
	"github.com/arief/naia/internal/logger"
)

var sendSessionID string

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send one message and print the complete reply",
	Long: `Send one message and block until the reply is complete. Unlike
chat, nothing streams; the reply prints once, which suits scripts and
pipelines.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendSessionID, "session", "default", "session id")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
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

	resp, err := rt.currentAgent().Chat(cmd.Context(), sendSessionID, "cli", strings.Join(args, " "))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Content)
	return nil
}
