// Package cli wires the ai-workflows command tree.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ai-workflows/backend/internal/api"
	"ai-workflows/backend/internal/completion"
	"ai-workflows/backend/internal/config"
	"ai-workflows/backend/internal/logging"
	"ai-workflows/backend/internal/workflow"
)

// NewRootCommand builds the ai-workflows command with all subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ai-workflows",
		Short:         "Turn natural-language requests into automation workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("env", "", "Path to .env file")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ./config.yaml)")

	SetupCLI(rootCmd)
	return rootCmd
}

// SetupCLI registers the subcommands on rootCmd.
func SetupCLI(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Serve(ctx, cfg, logger)
		},
	}

	generateCmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Generate one workflow and print it",
		Long:  "Generate one workflow and print it. Without arguments the prompt is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			prompt, err := readPrompt(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			compact, _ := cmd.Flags().GetBool("compact")

			extractor, err := NewExtractor(cfg, logger)
			if err != nil {
				return err
			}
			return generate(cmd.Context(), extractor, prompt, !compact, cmd.OutOrStdout())
		},
	}
	generateCmd.Flags().Bool("compact", false, "Print the JSON on a single line")

	promptCmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the system prompt sent with every request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), workflow.SystemPrompt())
			return err
		},
	}

	vocabularyCmd := &cobra.Command{
		Use:   "vocabulary",
		Short: "Print the trigger models and actions as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(workflow.CurrentVocabulary())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (vocabulary %s)\n", api.ServiceName, api.Version, workflow.VocabularyVersion)
			return err
		},
	}

	rootCmd.AddCommand(serveCmd, generateCmd, promptCmd, vocabularyCmd, versionCmd)
}

// NewExtractor builds the completion client and extractor described by cfg.
func NewExtractor(cfg *config.Config, logger *logging.Logger) (*workflow.Extractor, error) {
	client := completion.NewHTTPClient(completion.Options{
		BaseURL: cfg.Upstream.BaseURL,
		APIKey:  cfg.Upstream.APIKey,
		Timeout: cfg.Upstream.Timeout,
		Breaker: completion.BreakerOptions{
			Enabled:     cfg.Upstream.Breaker.Enabled,
			MaxFailures: cfg.Upstream.Breaker.MaxFailures,
			OpenTimeout: cfg.Upstream.Breaker.OpenTimeout,
		},
	}, logger)

	return workflow.NewExtractor(client, workflow.Options{
		Request: workflow.RequestOptions{
			Model:       cfg.Upstream.Model,
			Temperature: cfg.Upstream.Temperature,
			Token:       cfg.Upstream.Token,
			JSONMode:    cfg.Upstream.JSONMode,
		},
		Strategy: cfg.Extraction.Strategy,
	}, logger)
}

func loadRuntime(cmd *cobra.Command) (*config.Config, *logging.Logger, error) {
	envFile, _ := cmd.Flags().GetString("env")
	configFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadConfig(envFile, configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration loading failed: %w", err)
	}
	logger, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func readPrompt(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(b))
	if prompt == "" {
		return "", errors.New("no prompt given")
	}
	return prompt, nil
}

func generate(ctx context.Context, gen workflow.Generator, prompt string, pretty bool, out io.Writer) error {
	result, err := gen.Extract(ctx, prompt)
	if err != nil {
		if kind := workflow.Kind(err); kind != "" {
			return fmt.Errorf("%s: %w", kind, err)
		}
		return err
	}

	raw := []byte(result.Raw)
	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return fmt.Errorf("failed to format workflow: %w", err)
		}
		raw = buf.Bytes()
	}
	_, err = fmt.Fprintln(out, string(raw))
	return err
}
