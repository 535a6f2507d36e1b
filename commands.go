package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tanpawarit/aws-assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/aws-assistant/agent/assistant"
	"github.com/tanpawarit/aws-assistant/agent/awsclient"
	"github.com/tanpawarit/aws-assistant/agent/llm"
	"github.com/tanpawarit/aws-assistant/agent/mcpserver"
	configx "github.com/tanpawarit/aws-assistant/pkg/config"
	logx "github.com/tanpawarit/aws-assistant/pkg/logger"
	metricsx "github.com/tanpawarit/aws-assistant/pkg/metrics"
)

var logCloser io.Closer

var rootCmd = &cobra.Command{
	Use:           "aws-assistant",
	Short:         "Read-only AWS assistant for S3, IAM and EC2",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env")
		configx.SetEnvFile(envFile)

		logCfg, err := configx.New[logx.Config]("LOG")
		if err != nil {
			return fmt.Errorf("loading log config: %w", err)
		}
		closer, err := logx.Init(*logCfg)
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

type appConfig struct {
	assistant assistant.Config
	aws       awsclient.Config
	llm       llm.Config
}

func loadConfig() (appConfig, error) {
	assistantCfg, err := configx.New[assistant.Config]("ASSISTANT")
	if err != nil {
		return appConfig{}, fmt.Errorf("loading assistant config: %w", err)
	}
	awsCfg, err := configx.New[awsclient.Config]("AWS")
	if err != nil {
		return appConfig{}, fmt.Errorf("loading aws config: %w", err)
	}
	llmCfg, err := configx.New[llm.Config]("LLM")
	if err != nil {
		return appConfig{}, fmt.Errorf("loading llm config: %w", err)
	}
	return appConfig{assistant: *assistantCfg, aws: *awsCfg, llm: *llmCfg}, nil
}

func openSession(ctx context.Context, opts ...assistant.Option) (*assistant.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := assistant.Open(ctx, cfg.assistant, cfg.aws, cfg.llm, opts...)
	if err != nil {
		return nil, errors.New(orchestrator.Explain(err))
	}
	return s, nil
}

func openToolbox(ctx context.Context) (*assistant.Toolbox, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return assistant.NewToolbox(ctx, cfg.aws)
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		addr, _ := cmd.Flags().GetString("metrics-addr")

		var opts []assistant.Option
		if addr != "" {
			reg := prometheus.NewRegistry()
			opts = append(opts, assistant.WithMetrics(metricsx.New(reg)))
			stop := serveMetrics(addr, reg)
			defer stop()
		}

		s, err := openSession(ctx, opts...)
		if err != nil {
			return err
		}
		defer s.Close()

		return runREPL(ctx, s, os.Stdin, os.Stdout)
	},
}

func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and exit",
	Long: `Ask a single question and exit.

Examples:
  aws-assistant ask "which S3 buckets are public?"
  aws-assistant ask "show details for instance i-0abc1234"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		answer, err := s.Ask(ctx, strings.Join(args, " "))
		if err != nil {
			return errors.New(orchestrator.Explain(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check AWS and model connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		renderStatus(cmd.OutOrStdout(), s.Status(ctx))
		return nil
	},
}

// --- commands ---

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the tools available to the assistant",
	RunE: func(cmd *cobra.Command, args []string) error {
		tb, err := openToolbox(cmd.Context())
		if err != nil {
			return err
		}
		renderCommands(cmd.OutOrStdout(), tb.Commands())
		return nil
	},
}

// --- serve-mcp ---

var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Serve the AWS tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tb, err := openToolbox(ctx)
		if err != nil {
			return err
		}
		registry := tb.Registry()
		log.Info().Int("tools", registry.Len()).Str("region", tb.Region()).Msg("serving mcp on stdio")
		return mcpserver.ServeStdio(ctx, mcpserver.New(registry.Descriptors(), registry))
	},
}

func init() {
	rootCmd.PersistentFlags().String("env", "", "path to .env file (default ./.env when present)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	chatCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(chatCmd, askCmd, statusCmd, commandsCmd, serveMCPCmd)
}
