package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/qoyllur"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the embedding cache",
	}
	cmd.AddCommand(newCacheSaveCmd(a), newCacheInfoCmd(a), newCacheSearchCmd(a))
	return cmd
}

// cacheTarget picks the positional path, then the configured one.
func (a *app) cacheTarget(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if a.cfg.Cache.Path != "" {
		return a.cfg.Cache.Path, nil
	}
	return "", fmt.Errorf("%w: no cache path given and cache.path is not configured", qoyllur.ErrInvalidConfig)
}

func newCacheSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save [path]",
		Short: "Build embeddings and write them to the cache",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.cacheTarget(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			engine, err := a.engine(ctx)
			if err != nil {
				return err
			}
			if err := engine.SaveCache(ctx, path); err != nil {
				return err
			}
			st := engine.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "cached %d entities (%s, dim %d) in %s\n", st.Entities, st.Model, st.Dim, path)
			return nil
		},
	}
}

func newCacheInfoCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info [path]",
		Short: "Describe the cached snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.cacheTarget(args)
			if err != nil {
				return err
			}
			if !asJSON {
				a.cfg.Cache.Path = path
				a.printCache(cmd.Context(), cmd.OutOrStdout())
				return nil
			}
			info, err := qoyllur.CacheInfo(cmd.Context(), path)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newCacheSearchCmd(a *app) *cobra.Command {
	var (
		path   string
		topK   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Nearest entities from the cached vectors",
		Long: `Embed the query and run a nearest-neighbour search over the vectors
stored in the cache. The graph is not loaded, so the cache must have been
built with the configured embedder.`,
		Example: `  qoyllur cache search --path qoyllur.db "guardianes del glaciar"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target []string
			if path != "" {
				target = []string{path}
			}
			p, err := a.cacheTarget(target)
			if err != nil {
				return err
			}
			results, err := qoyllur.SearchCache(cmd.Context(), a.cfg.Embedding, p, strings.Join(args, " "), topK)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"results": results})
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tID\tSCORE")
			for i, r := range results {
				fmt.Fprintf(tw, "%d\t%s\t%.3f\n", i+1, r.ID, r.Score)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Cache database (default: cache.path)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
