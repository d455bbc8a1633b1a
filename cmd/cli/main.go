package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/nickyhof/orpheus"
	"github.com/nickyhof/orpheus/config"
	"github.com/nickyhof/orpheus/db"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	promptColor  = color.New(color.FgCyan, color.Bold)
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
)

// CLI holds the state shared by every command of one process: the loaded
// configuration and the instance opened from it.
type CLI struct {
	configPath string
	name       string
	email      string

	cfg      *config.Config
	instance *orpheus.Instance

	history     []string
	historyFile string
}

func main() {
	cli := &CLI{historyFile: getHistoryPath()}
	defer cli.Close()

	root := newRootCmd(cli)
	if err := root.Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "✗ Error: %v\n", err)
		cli.Close()
		os.Exit(1)
	}
}

func newRootCmd(cli *CLI) *cobra.Command {
	root := &cobra.Command{
		Use:           "orpheus",
		Short:         "Dataset version control over a relational store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cli.configPath, "config", cli.configPath, "Configuration file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	flags.StringVar(&cli.name, "name", cli.name, "User name recorded on checkouts and grants")
	flags.StringVar(&cli.email, "email", cli.email, "User email recorded on checkouts")

	root.AddCommand(
		initCmd(cli),
		dropCmd(cli),
		lsCmd(cli),
		showCmd(cli),
		checkoutCmd(cli),
		commitCmd(cli),
		logCmd(cli),
		cleanCmd(cli),
		historyCmd(cli),
		configCmd(cli),
		runCmd(cli),
		shellCmd(cli),
		versionCmd(),
	)
	return root
}

func (cli *CLI) loadConfig() (config.Config, error) {
	if cli.cfg != nil {
		return *cli.cfg, nil
	}
	cfg, err := config.Load(config.Path(cli.configPath))
	if err != nil {
		return config.Config{}, err
	}
	cli.cfg = &cfg
	return cfg, nil
}

// engine opens the instance on first use and returns an engine acting as the
// configured user, overridden by --name and --email.
func (cli *CLI) engine(ctx context.Context) (*db.Engine, error) {
	cfg, err := cli.loadConfig()
	if err != nil {
		return nil, err
	}
	if cli.instance == nil {
		if cli.instance, err = orpheus.OpenConfig(ctx, cfg); err != nil {
			return nil, err
		}
	}

	identity := cfg.User
	if cli.name != "" {
		identity.Name = cli.name
	}
	if cli.email != "" {
		identity.Email = cli.email
	}
	return cli.instance.Engine(identity), nil
}

func (cli *CLI) Close() {
	if cli.instance != nil {
		cli.instance.Close()
		cli.instance = nil
	}
}

func printResult(w io.Writer, result db.Result) {
	switch r := result.(type) {
	case db.CommitResult:
		successColor.Fprint(w, "✓ ")
		r.Print(w)
	case db.QueryResult:
		r.Print(w)
	}
}

func printBanner(w io.Writer) {
	versionLine := fmt.Sprintf("Orpheus v%s", Version)
	fmt.Fprintln(w)
	promptColor.Fprintln(w, "╔═══════════════════════════════════════╗")
	promptColor.Fprintf(w, "║ %-37s ║\n", versionLine)
	promptColor.Fprintln(w, "║   Dataset Version Control             ║")
	promptColor.Fprintln(w, "╚═══════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Type help for commands, quit to exit")
	fmt.Fprintln(w)
}
