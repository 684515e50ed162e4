// Package main provides the BytEdge CLI: an HTTP API server, one-shot questions,
// agent suggestions and an interactive chat with the automotive engineering agents.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bytedge/internal/config"
	"bytedge/internal/logger"
	"bytedge/internal/router"
	"bytedge/internal/server"
	"bytedge/internal/services"
	"bytedge/internal/shell"
	"bytedge/internal/version"
)

var (
	configFile string
	envFile    string
	cfg        *config.Config

	askAgent    string
	askSession  string
	rawOutput   bool
	chatAgent   string
	historyFile string
	versionJSON bool
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var rootCmd = &cobra.Command{
	Use:   "bytedge",
	Short: "BytEdge - automotive engineering agents",
	Long: `BytEdge answers automotive engineering questions with domain specialist agents
(brakes, frame, clutch, tires, engine, battery). Questions can be routed to an agent
explicitly or by topic, and each conversation keeps its own bounded history.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <question...>",
	Short: "Show which agents fit a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSuggest,
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the available agents",
	RunE:  runAgents,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	RunE:  runChat,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	// Version needs no configuration.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !versionJSON {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetFormattedVersion())
			return nil
		}
		info, err := version.GetInfo()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")
	flags.StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	flags.String("provider", "", "Generation provider (gemini|openai|anthropic)")
	flags.String("model", "", "Model id [default: provider default]")
	flags.String("agents-file", "", "YAML agent table replacing the built-in agents")
	flags.String("log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	flags.String("log-file", "", "Write logs to file instead of stderr")
	flags.String("log-format", "", "Log format (text|json|logfmt) [default: text]")

	bindings := map[string]string{
		"provider":    "provider",
		"model":       "model",
		"agents_file": "agents-file",
		"log_level":   "log-level",
		"log_file":    "log-file",
		"log_format":  "log-format",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}

	serveCmd.Flags().String("host", "", "Listen host [default: 0.0.0.0]")
	serveCmd.Flags().Int("port", 0, "Listen port [default: 5000]")
	if err := viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding host flag: %v\n", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port")); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding port flag: %v\n", err)
		os.Exit(1)
	}

	askCmd.Flags().StringVar(&askAgent, "agent", "", "Agent id [default: routed by topic]")
	askCmd.Flags().StringVar(&askSession, "session", "", "Continue an existing conversation")
	askCmd.Flags().BoolVar(&rawOutput, "raw", false, "Print the answer without markdown rendering")
	suggestCmd.Flags().BoolVar(&rawOutput, "raw", false, "Print the recommendation without markdown rendering")

	chatCmd.Flags().StringVar(&chatAgent, "agent", "", "Agent id, or auto to route by topic")
	chatCmd.Flags().StringVar(&historyFile, "history-file", "", "Persist input history to this file")

	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print build information as JSON")

	rootCmd.AddCommand(serveCmd, askCmd, suggestCmd, agentsCmd, chatCmd, versionCmd)
}

func initConfig(_ *cobra.Command, _ []string) error {
	loaded, err := config.Load(viper.GetViper(), configFile, envFile)
	if err != nil {
		return err
	}
	if err := logger.Configure(loaded.LogLevel, loaded.LogFile, loaded.LogFormat); err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	cfg = loaded
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(_ *cobra.Command, _ []string) error {
	r, err := buildRouter(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	logger.Info("Starting BytEdge API", "version", version.Version, "addr", cfg.Server.Addr(), "provider", cfg.Provider)
	srv := server.New(r, server.Options{
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	return srv.Run(ctx, 10*time.Second)
}

func runAsk(cmd *cobra.Command, args []string) error {
	r, err := buildRouter(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	resp, err := r.Respond(ctx, router.Request{
		Message:   strings.Join(args, " "),
		AgentID:   askAgent,
		SessionID: askSession,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(resp.AgentName)+" "+mutedStyle.Render(resp.SessionID))
	fmt.Fprintln(out, renderAnswer(resp.Text))
	return nil
}

func runSuggest(cmd *cobra.Command, args []string) error {
	r, err := buildRouter(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	s, err := r.Suggest(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(s.Summary))
	for _, id := range s.Agents {
		fmt.Fprintf(out, "  %-8s %s\n", id, mutedStyle.Render(fmt.Sprintf("score %d", s.Scores[id])))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderAnswer(s.Text))
	return nil
}

func runAgents(cmd *cobra.Command, _ []string) error {
	r, err := buildRouter(cfg)
	if err != nil {
		return err
	}
	printAgents(cmd.OutOrStdout(), r)
	return nil
}

func printAgents(out io.Writer, r *router.Router) {
	profiles := r.Registry().List()
	width := 0
	for _, p := range profiles {
		if len(p.ID) > width {
			width = len(p.ID)
		}
	}
	for _, p := range profiles {
		fmt.Fprintf(out, "%s %-*s %s  %s\n", p.Avatar, width, p.ID,
			titleStyle.Render(p.DisplayName), mutedStyle.Render(p.Domain))
	}
}

func runChat(_ *cobra.Command, _ []string) error {
	r, err := buildRouter(cfg)
	if err != nil {
		return err
	}

	var renderer shell.Renderer
	md := services.NewMarkdownService("", 0)
	if err := md.Initialize(); err != nil {
		logger.Warn("markdown rendering unavailable", "error", err)
	} else {
		renderer = md
	}

	chat, err := shell.NewChat(r, chatAgent, os.Stdout, renderer)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	ids := r.Registry().IDs()
	sort.Strings(ids)
	banner := fmt.Sprintf("%s - agents: %s", version.GetFormattedVersion(), strings.Join(ids, ", "))
	return shell.Run(ctx, chat, banner, historyFile)
}

func renderAnswer(text string) string {
	if rawOutput {
		return text
	}
	md := services.NewMarkdownService("", 0)
	if err := md.Initialize(); err != nil {
		return text
	}
	rendered, err := md.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}
