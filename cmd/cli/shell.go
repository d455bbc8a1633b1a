package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func shellCmd(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands interactively against one open instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.loadHistory()
			defer cli.saveHistory()
			printBanner(cmd.OutOrStdout())
			return cli.shell(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runCmd(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "run <script>",
		Short: "Execute the commands of a script file, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.runScript(args[0], cmd.OutOrStdout())
		},
	}
}

func (cli *CLI) shell(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	for {
		promptColor.Fprint(out, "orpheus> ")

		input, err := reader.ReadString('\n')
		if err != nil {
			successColor.Fprintln(out, "\nGoodbye!")
			return nil
		}

		line := strings.TrimSpace(input)
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit", ".q":
			successColor.Fprintln(out, "Goodbye!")
			return nil
		case "help", ".help":
			cli.execute([]string{"help"}, out)
			continue
		case "clear":
			fmt.Fprint(out, "\033[H\033[2J")
			continue
		case ".history":
			cli.printHistory(out)
			continue
		}

		cli.addToHistory(line)
		args, err := splitArgs(line)
		if err != nil {
			errorColor.Fprintf(out, "✗ Error: %v\n", err)
			continue
		}
		if err := cli.execute(args, out); err != nil {
			errorColor.Fprintf(out, "✗ Error: %v\n", err)
		}
	}
}

// execute runs one command line on a fresh command tree sharing cli.
func (cli *CLI) execute(args []string, out io.Writer) error {
	root := newRootCmd(cli)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.Execute()
}

// runScript executes a file of commands. Failures are reported and counted;
// the script continues.
func (cli *CLI) runScript(filename string, out io.Writer) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	successCount := 0
	errorCount := 0
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		args, err := splitArgs(line)
		if err == nil {
			err = cli.execute(args, io.Discard)
		}
		if err != nil {
			errorColor.Fprintf(out, "[%d] ✗ %s\n", i+1, truncate(line, 50))
			fmt.Fprintf(out, "      Error: %v\n", err)
			errorCount++
			continue
		}
		successColor.Fprintf(out, "[%d] ✓ %s\n", i+1, truncate(line, 50))
		successCount++
	}

	successColor.Fprintf(out, "\n✓ Script complete: %d succeeded, %d failed\n", successCount, errorCount)
	if errorCount > 0 {
		return fmt.Errorf("%d command(s) failed", errorCount)
	}
	return nil
}

// splitArgs splits a command line on whitespace. Single and double quotes
// group words; a backslash escapes the next character outside single
// quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, ch := range line {
		switch {
		case escaped:
			current.WriteRune(ch)
			escaped = false
		case ch == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				current.WriteRune(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inWord = true
		case ch == ' ' || ch == '\t':
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(ch)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inWord {
		args = append(args, current.String())
	}
	return args, nil
}

// truncate shortens a string to max length with ellipsis
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func (cli *CLI) addToHistory(cmd string) {
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)
	if len(cli.history) > 1000 {
		cli.history = cli.history[len(cli.history)-1000:]
	}
}

func (cli *CLI) printHistory(out io.Writer) {
	if len(cli.history) == 0 {
		fmt.Fprintln(out, "No command history")
		return
	}
	start := max(0, len(cli.history)-20)
	for i := start; i < len(cli.history); i++ {
		fmt.Fprintf(out, "  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".orpheus_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}
	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}
	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	start := max(0, len(cli.history)-1000)
	for _, line := range cli.history[start:] {
		_, _ = file.WriteString(line + "\n")
	}
}
