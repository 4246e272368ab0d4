package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/qoyllur"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	graphPath  string
	cachePath  string
	logLevel   string
	plain      bool

	cfg qoyllur.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "qoyllur",
		Short: "Qoyllur Rit'i knowledge graph question answering",
		Long: `qoyllur loads an RDF graph about the Qoyllur Rit'i pilgrimage and answers
questions with templates over lexical, semantic or hybrid entity search.

Configuration comes from --config (YAML or JSON) and QOYLLUR_* environment
variables; flags override both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Config file (YAML or JSON)")
	pf.StringVarP(&a.graphPath, "graph", "g", "", "RDF graph file (overrides config)")
	pf.StringVar(&a.cachePath, "cache", "", "Embedding cache database (overrides config)")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&a.plain, "plain", false, "Print raw markdown instead of rendering it")

	root.AddCommand(
		newAskCmd(a),
		newSearchCmd(a),
		newChatCmd(a),
		newEvalCmd(a),
		newCacheCmd(a),
	)
	return root
}

// setup loads the config, applies flag overrides and installs the text
// log handler on stderr.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := qoyllur.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.graphPath != "" {
		cfg.GraphPath = a.graphPath
	}
	if a.cachePath != "" {
		cfg.Cache.Path = a.cachePath
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	level, err := qoyllur.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	a.cfg = cfg
	return nil
}

func (a *app) engine(ctx context.Context) (qoyllur.Engine, error) {
	return qoyllur.New(ctx, a.cfg)
}

// render prints markdown through glamour unless --plain is set or the
// output is not a terminal.
func (a *app) render(w io.Writer, markdown string) {
	if !a.plain && isTerminal(w) {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
		if err == nil {
			if out, err := r.Render(markdown); err == nil {
				fmt.Fprint(w, out)
				return
			}
		}
	}
	fmt.Fprintln(w, markdown)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
