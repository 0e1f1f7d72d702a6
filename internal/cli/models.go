package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arief/naia/internal/config"
	"github.com/arief/naia/internal/logger"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models every configured backend offers",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
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

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	seen := map[string]bool{}
	for _, prefix := range registry.Prefixes() {
		backend, err := registry.Resolve(prefix)
		if err != nil {
			return err
		}
		if seen[backend.Name()] {
			continue
		}
		seen[backend.Name()] = true

		models, err := backend.ListModels(cmd.Context())
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", backend.Name(), err)
			continue
		}
		fmt.Fprintf(out, "%s:\n", backend.Name())
		for _, model := range models {
			fmt.Fprintf(out, "  %s\n", model)
		}
	}
	return nil
}
