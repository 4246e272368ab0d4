package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/qoyllur"
)

const chatHelp = `Escribe una pregunta sobre Qoyllur Rit'i.
Comandos: stats, cache, ayuda, salir`

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive question loop",
		Long: `Read questions from stdin and answer each one.

Commands:
  stats   graph and index statistics
  cache   embedding cache status
  ayuda   this help
  salir   leave (also "exit", "quit" or EOF)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			engine, err := a.engine(ctx)
			if err != nil {
				return err
			}
			return a.chat(ctx, engine, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (a *app) chat(ctx context.Context, engine qoyllur.Engine, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, chatHelp)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "salir", "exit", "quit":
			fmt.Fprintln(out, "¡Hasta pronto!")
			return nil
		case "ayuda", "help":
			fmt.Fprintln(out, chatHelp)
		case "stats":
			printStats(out, engine.Stats())
		case "cache":
			a.printCache(ctx, out)
		default:
			a.render(out, engine.Respond(line))
		}
	}
}

func printStats(out io.Writer, st qoyllur.Stats) {
	fmt.Fprintf(out, "entities:   %d\n", st.Entities)
	fmt.Fprintf(out, "terms:      %d\n", st.Terms)
	fmt.Fprintf(out, "relations:  %d\n", st.Relations)
	if st.Semantic {
		fmt.Fprintf(out, "embeddings: %s (dim %d)\n", st.Model, st.Dim)
	} else {
		fmt.Fprintln(out, "embeddings: disabled")
	}
	fmt.Fprintf(out, "from cache: %t\n", st.FromCache)
	fmt.Fprintf(out, "build:      %dms\n", st.BuildMillis)
}

func (a *app) printCache(ctx context.Context, out io.Writer) {
	path := a.cfg.Cache.Path
	if path == "" {
		fmt.Fprintln(out, "cache: not configured")
		return
	}
	info, err := qoyllur.CacheInfo(ctx, path)
	if errors.Is(err, qoyllur.ErrCacheMiss) {
		fmt.Fprintf(out, "cache: %s is empty\n", path)
		return
	}
	if err != nil {
		fmt.Fprintf(out, "cache: %v\n", err)
		return
	}
	fmt.Fprintf(out, "cache:    %s\n", path)
	fmt.Fprintf(out, "model:    %s (dim %d)\n", info.Model, info.Dim)
	fmt.Fprintf(out, "entities: %d\n", info.EntityCount)
	fmt.Fprintf(out, "size:     %d bytes\n", info.SizeBytes)
	fmt.Fprintf(out, "created:  %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"))
}
