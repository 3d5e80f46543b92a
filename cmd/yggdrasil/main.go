// Package main provides the Yggdrasil CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orneryd/yggdrasil/pkg/config"
	"github.com/orneryd/yggdrasil/pkg/graph"
	"github.com/orneryd/yggdrasil/pkg/logging"
	"github.com/orneryd/yggdrasil/pkg/yggdrasil"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

// cliState carries the objects every subcommand needs.
type cliState struct {
	cfg    *config.Config
	logger *zap.Logger
	kb     *yggdrasil.KB
}

// openKB loads configuration and opens the knowledge base.
func openKB(configPath string) (*cliState, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	kb, err := yggdrasil.Open(cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	return &cliState{cfg: cfg, logger: logger, kb: kb}, nil
}

func (s *cliState) close() {
	if err := s.kb.Close(); err != nil {
		s.logger.Warn("closing knowledge base", zap.Error(err))
	}
	_ = s.logger.Sync()
}

// parseSetFlags turns repeated --set key=value flags into an attribute map.
func parseSetFlags(pairs []string) (graph.Attrs, error) {
	attrs := graph.Attrs{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", pair)
		}
		attrs[key] = value
	}
	return attrs, nil
}

// printJSON renders a result for scripting consumers.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "yggdrasil",
		Short: "Yggdrasil - knowledge-base synchronization engine",
		Long: `Yggdrasil keeps a property graph and its vector indexes coherent.

Entities and relations live in a graph store (the source of truth) and are
projected into per-class vector indexes for similarity search. Every mutation
lands in both representations and ends with a durability checkpoint on the
stores it touched.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("yggdrasil %s (commit %s, built %s)\n", version, commit, buildTime)
		},
	})

	initCmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a data directory with a default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			path := dir + "/yggdrasil.yaml"
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			data := []byte(`namespace: default
storage:
  engine: badger
  data_dir: ./data
embedding:
  provider: hash
  dimensions: 256
logging:
  level: info
`)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	rootCmd.AddCommand(initCmd)

	// entity add|update|delete
	entityCmd := &cobra.Command{
		Use:   "entity",
		Short: "Manage entities",
	}

	var addSet []string
	entityAddCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create an entity (or merge attributes into an existing one)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := parseSetFlags(addSet)
			if err != nil {
				return err
			}
			state, err := openKB(configPath)
			if err != nil {
				return err
			}
			defer state.close()

			merged, err := state.kb.SeedEntity(cmd.Context(), args[0], attrs)
			if err != nil {
				return err
			}
			return printJSON(merged)
		},
	}
	entityAddCmd.Flags().StringArrayVar(&addSet, "set", nil, "attribute to set, key=value (repeatable)")

	var updateSet []string
	entityUpdateCmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Merge attributes into an existing entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := parseSetFlags(updateSet)
			if err != nil {
				return err
			}
			state, err := openKB(configPath)
			if err != nil {
				return err
			}
			defer state.close()

			merged, err := state.kb.UpdateEntity(cmd.Context(), args[0], attrs)
			if errors.Is(err, yggdrasil.ErrEntityNotFound) {
				return fmt.Errorf("entity %q does not exist", args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(merged)
		},
	}
	entityUpdateCmd.Flags().StringArrayVar(&updateSet, "set", nil, "attribute to set, key=value (repeatable)")

	entityDeleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an entity, cascading to its relations and vector records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := openKB(configPath)
			if err != nil {
				return err
			}
			defer state.close()

			if err := state.kb.DeleteEntity(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, yggdrasil.ErrEntityNotFound) {
					return fmt.Errorf("entity %q does not exist", args[0])
				}
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}

	entityCmd.AddCommand(entityAddCmd, entityUpdateCmd, entityDeleteCmd)
	rootCmd.AddCommand(entityCmd)

	// relation update, relations import
	relationCmd := &cobra.Command{
		Use:   "relation",
		Short: "Manage relations",
	}

	var relSet []string
	relationUpdateCmd := &cobra.Command{
		Use:   "update <src> <tgt>",
		Short: "Merge attributes into an existing relation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := parseSetFlags(relSet)
			if err != nil {
				return err
			}
			state, err := openKB(configPath)
			if err != nil {
				return err
			}
			defer state.close()

			merged, err := state.kb.UpdateRelation(cmd.Context(), args[0], args[1], attrs)
			if errors.Is(err, yggdrasil.ErrEntityNotFound) || errors.Is(err, yggdrasil.ErrRelationNotFound) {
				return fmt.Errorf("cannot update relation %s -> %s: %v", args[0], args[1], err)
			}
			if err != nil {
				return err
			}
			return printJSON(merged)
		},
	}
	relationUpdateCmd.Flags().StringArrayVar(&relSet, "set", nil, "attribute to set, key=value (repeatable)")
	relationCmd.AddCommand(relationUpdateCmd)
	rootCmd.AddCommand(relationCmd)

	relationsCmd := &cobra.Command{
		Use:   "relations",
		Short: "Batch relation operations",
	}
	relationsImportCmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Insert custom relations from a JSON array",
		Long: `Reads a JSON array of relation descriptions and inserts them between
existing entities. Items whose endpoints are missing are skipped with a
reason; the rest of the batch proceeds.

Each item: {"src_id": ..., "tgt_id": ..., "description": ..., "keywords": ...,
"weight": optional, "source_id": optional}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var specs []yggdrasil.RelationSpec
			if err := json.Unmarshal(data, &specs); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			state, err := openKB(configPath)
			if err != nil {
				return err
			}
			defer state.close()

			result, err := state.kb.InsertCustomRelations(cmd.Context(), specs)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	relationsCmd.AddCommand(relationsImportCmd)
	rootCmd.AddCommand(relationsCmd)

	var searchRelations bool
	var searchK int
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Similarity search over entities (or relations with --relations)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := openKB(configPath)
			if err != nil {
				return err
			}
			defer state.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), state.cfg.Embedding.RequestTimeout)
			defer cancel()

			var (
				matches any
				qerr    error
			)
			if searchRelations {
				matches, qerr = state.kb.SearchRelations(ctx, args[0], searchK)
			} else {
				matches, qerr = state.kb.SearchEntities(ctx, args[0], searchK)
			}
			if qerr != nil {
				return qerr
			}
			return printJSON(matches)
		},
	}
	searchCmd.Flags().BoolVar(&searchRelations, "relations", false, "search the relation index instead of entities")
	searchCmd.Flags().IntVarP(&searchK, "top", "k", 10, "number of results")
	rootCmd.AddCommand(searchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
