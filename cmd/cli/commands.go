package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nickyhof/orpheus/config"
	"github.com/nickyhof/orpheus/core"
	"github.com/nickyhof/orpheus/db"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type fileFlags struct {
	delimiter string
	header    bool
}

func (f *fileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", ",", `Field delimiter of delimited files ("\t" for tab)`)
	cmd.Flags().BoolVar(&f.header, "header", false, "Delimited files carry a header line")
}

func initCmd(cli *CLI) *cobra.Command {
	var (
		req   db.InitRequest
		attrs string
		file  fileFlags
	)
	cmd := &cobra.Command{
		Use:   "init <dataset>",
		Short: "Put a table or a delimited file under version control",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := cli.engine(cmd.Context())
			if err != nil {
				return err
			}
			req.Dataset = args[0]
			req.Attributes = splitList(attrs)
			req.Delimiter, req.Header = file.delimiter, file.header

			result, err := engine.InitDataset(cmd.Context(), req)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Table, "table", "t", "", "Source table")
	cmd.Flags().StringVarP(&req.File, "file", "f", "", "Source delimited file (local path, http(s):// or s3://)")
	cmd.Flags().StringVarP(&req.SchemaTable, "schema", "s", "", "Table whose column types describe the file")
	cmd.Flags().StringVarP(&attrs, "attributes", "a", "", "Comma separated list of tracked columns")
	file.register(cmd)
	return cmd
}

func dropCmd(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <dataset>",
		Short: "Remove a dataset with its versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := cli.engine(cmd.Context())
			if err != nil {
				return err
			}
			result, err := engine.DropDataset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func lsCmd(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List datasets",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := cli.engine(cmd.Context())
			if err != nil {
				return err
			}
			start := time.Now()
			names, err := engine.ListDatasets(cmd.Context())
			if err != nil {
				return err
			}
			result := db.DatasetsResult(names)
			result.ExecutionTimeSec = time.Since(start).Seconds()
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func showCmd(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "show <dataset>",
		Short: "Show the schema, size and versions of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := cli.engine(cmd.Context())
			if err != nil {
				return err
			}
			start := time.Now()
			info, err := engine.ShowDataset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			promptColor.Fprintln(out, info.Describe())
			result := db.VersionsResult(info.Versions)
			result.ExecutionTimeSec = time.Since(start).Seconds()
			printResult(out, result)
			return nil
		},
	}
}

func checkoutCmd(cli *CLI) *cobra.Command {
	var (
		req      db.CheckoutRequest
		versions string
		file     fileFlags
	)
	cmd := &cobra.Command{
		Use:     "checkout <dataset>",
		Aliases: []string{"clone"},
		Short:   "Materialize one or more versions into a table or a file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vids, err := core.ParseVersions(versions)
			if err != nil {
				return err
			}
			engine, err := cli.engine(cmd.Context())
			if err != nil {
				return err
			}
			req.Dataset = args[0]
			req.Versions = vids
			req.Delimiter, req.Header = file.delimiter, file.header

			result, err := engine.Checkout(cmd.Context(), req)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&versions, "versions", "v", "", "Comma separated version ids")
	cmd.Flags().StringVarP(&req.Table, "table", "t", "", "Destination table")
	cmd.Flags().StringVarP(&req.File, "file", "f", "", "Destination delimited file (local path or s3://)")
	cmd.Flags().BoolVarP(&req.IgnoreDuplicates, "ignore", "i", false, "Write tuples shared by several versions only once")
	file.register(cmd)
	return cmd
}

func commitCmd(cli *CLI) *cobra.Command {
	var (
		req  db.CommitRequest
		file fileFlags
	)
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record the new rows of a checked out table or file as a version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := cli.engine(cmd.Context())
			if err != nil {
				return err
			}
			req.Delimiter, req.Header = file.delimiter, file.header

			result, err := engine.Commit(cmd.Context(), req)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Table, "table", "t", "", "Checked out table")
	cmd.Flags().StringVarP(&req.File, "file", "f", "", "Checked out delimited file")
	cmd.Flags().StringVarP(&req.Message, "message", "m", "", "Commit message")
	file.register(cmd)
	return cmd
}

func logCmd(cli *CLI) *cobra.Command {
	var ancestorsOf int64
	cmd := &cobra.Command{
		Use:   "log <dataset>",
		Short: "List the versions of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := cli.engine(cmd.Context())
			if err != nil {
				return err
			}
			start := time.Now()
			versions, err := engine.Versions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if ancestorsOf > 0 {
				ancestors, err := engine.Ancestors(cmd.Context(), args[0], ancestorsOf)
				if err != nil {
					return err
				}
				keep := make(map[int64]bool, len(ancestors))
				for _, vid := range ancestors {
					keep[vid] = true
				}
				filtered := versions[:0]
				for _, v := range versions {
					if keep[v.ID] {
						filtered = append(filtered, v)
					}
				}
				versions = filtered
			}

			result := db.VersionsResult(versions)
			result.ExecutionTimeSec = time.Since(start).Seconds()
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().Int64Var(&ancestorsOf, "ancestors", 0, "Only list the ancestors of this version")
	return cmd
}

func cleanCmd(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Forget every checkout record; datasets are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := cli.engine(cmd.Context())
			if err != nil {
				return err
			}
			txn, err := engine.Clean(cmd.Context())
			if err != nil {
				return err
			}
			successColor.Fprintf(cmd.OutOrStdout(), "✓ Metadata cleaned (%s)\n", txn.Id)
			return nil
		},
	}
}

func historyCmd(cli *CLI) *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the changes made to the checkout records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := cli.engine(cmd.Context())
			if err != nil {
				return err
			}
			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			start := time.Now()
			transactions, err := engine.History(cmd.Context(), from)
			if err != nil {
				return err
			}
			result := db.HistoryResult(transactions)
			result.ExecutionTimeSec = time.Since(start).Seconds()
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "Only list changes newer than this (e.g. 24h)")
	return cmd
}

func configCmd(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var force bool
	initConfig := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(cli.configPath)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			successColor.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
			return nil
		},
	}
	initConfig.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.loadConfig()
			if err != nil {
				return err
			}
			cfg.Server.JWTSecret = redact(cfg.Server.JWTSecret)
			cfg.S3.SecretKey = redact(cfg.S3.SecretKey)
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initConfig, show)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Orpheus version %s\n", Version)
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
