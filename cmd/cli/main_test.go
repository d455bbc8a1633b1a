package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupTestCLI(t *testing.T) (*CLI, string) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := "store:\n  driver: sqlite\n  dsn: \"\"\n  transactional: true\nmeta:\n  dir: \"\"\nhome: " + dir + "\nlog_level: error\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cli := &CLI{configPath: configPath}
	t.Cleanup(cli.Close)
	return cli, dir
}

func run(t *testing.T, cli *CLI, line string) string {
	t.Helper()
	args, err := splitArgs(line)
	if err != nil {
		t.Fatalf("Failed to split %q: %v", line, err)
	}
	var buf bytes.Buffer
	if err := cli.execute(args, &buf); err != nil {
		t.Fatalf("%s failed: %v\n%s", line, err, buf.String())
	}
	return buf.String()
}

func TestCLIListEmpty(t *testing.T) {
	cli, _ := setupTestCLI(t)

	out := run(t, cli, "ls")
	if !strings.Contains(out, "0 rows") {
		t.Errorf("Expected an empty listing, got %q", out)
	}
}

func TestCLIFileWorkflow(t *testing.T) {
	cli, dir := setupTestCLI(t)

	src := filepath.Join(dir, "orders.csv")
	if err := os.WriteFile(src, []byte("id,total\n1,10\n2,20\n3,30\n"), 0644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}

	out := run(t, cli, "init orders --file orders.csv --attributes id,total --header")
	if !strings.Contains(out, "version 1 of orders created") {
		t.Errorf("Unexpected init output: %q", out)
	}

	out = run(t, cli, "ls")
	if !strings.Contains(out, "orders") {
		t.Errorf("Expected orders in listing, got %q", out)
	}

	run(t, cli, "clone orders -v 1 --file work.csv --header")
	work := filepath.Join(dir, "work.csv")
	data, err := os.ReadFile(work)
	if err != nil {
		t.Fatalf("Checkout did not write the file: %v", err)
	}
	if err := os.WriteFile(work, append(data, []byte("4,40\n")...), 0644); err != nil {
		t.Fatalf("Failed to extend work file: %v", err)
	}

	out = run(t, cli, `commit --file work.csv --header -m "fourth order"`)
	if !strings.Contains(out, "version 2 of orders created") {
		t.Errorf("Unexpected commit output: %q", out)
	}

	out = run(t, cli, `commit --file work.csv --header -m "again"`)
	if !strings.Contains(out, "Nothing to commit") {
		t.Errorf("Expected a no-op commit, got %q", out)
	}

	out = run(t, cli, "log orders")
	if !strings.Contains(out, "fourth order") || !strings.Contains(out, "2 rows") {
		t.Errorf("Unexpected log output: %q", out)
	}

	out = run(t, cli, "show orders")
	if !strings.Contains(out, "4 rows, 2 version(s)") {
		t.Errorf("Unexpected show output: %q", out)
	}

	out = run(t, cli, "clone orders -v 2,1 --table merged --ignore")
	if !strings.Contains(out, "4 record(s) written to merged") {
		t.Errorf("Unexpected merge checkout output: %q", out)
	}

	out = run(t, cli, "history")
	if !strings.Contains(out, "Checkout orders version(s) 2,1 to merged") {
		t.Errorf("Unexpected history output: %q", out)
	}

	run(t, cli, "clean")
	run(t, cli, "drop orders")
	out = run(t, cli, "ls")
	if strings.Contains(out, "orders") {
		t.Errorf("Expected orders to be dropped, got %q", out)
	}
}

func TestCLIErrors(t *testing.T) {
	cli, _ := setupTestCLI(t)

	for _, line := range []string{
		"drop missing",
		"commit",
		"checkout orders -v x --table t",
		"init orders",
	} {
		args, _ := splitArgs(line)
		if err := cli.execute(args, &bytes.Buffer{}); err == nil {
			t.Errorf("Expected %q to fail", line)
		}
	}
}

func TestCLIRunScript(t *testing.T) {
	cli, dir := setupTestCLI(t)

	if err := os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x\n1\n"), 0644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}
	script := filepath.Join(dir, "script.orph")
	content := "# setup\ninit a --file a.csv --attributes x --header\nls\ndrop nothing\n"
	if err := os.WriteFile(script, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	var buf bytes.Buffer
	err := cli.runScript(script, &buf)
	if err == nil {
		t.Error("Expected the failing line to be reported")
	}
	out := buf.String()
	if !strings.Contains(out, "2 succeeded, 1 failed") {
		t.Errorf("Unexpected script summary: %q", out)
	}
}

func TestCLIShell(t *testing.T) {
	cli, _ := setupTestCLI(t)

	in := strings.NewReader("ls\n\nbogus\nquit\n")
	var out bytes.Buffer
	if err := cli.shell(in, &out); err != nil {
		t.Fatalf("Shell failed: %v", err)
	}
	if !strings.Contains(out.String(), "Goodbye!") {
		t.Errorf("Expected goodbye, got %q", out.String())
	}
	if !strings.Contains(out.String(), "✗ Error") {
		t.Errorf("Expected an error for the unknown command, got %q", out.String())
	}
	if len(cli.history) != 2 {
		t.Errorf("Expected 2 history entries, got %v", cli.history)
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"ls", []string{"ls"}},
		{`commit -m "two words"`, []string{"commit", "-m", "two words"}},
		{`commit -m 'it''s'`, []string{"commit", "-m", "its"}},
		{`init a --delimiter "\t"`, []string{"init", "a", "--delimiter", "t"}},
		{`init a --delimiter '\t'`, []string{"init", "a", "--delimiter", `\t`}},
		{"  spaced   out  ", []string{"spaced", "out"}},
		{`empty ""`, []string{"empty", ""}},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.line)
		if err != nil {
			t.Fatalf("splitArgs(%q) failed: %v", tt.line, err)
		}
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitArgs(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}

	if _, err := splitArgs(`commit -m "open`); err == nil {
		t.Error("Expected an unterminated quote error")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("a much longer line than allowed", 10); got != "a much ..." {
		t.Errorf("got %q", got)
	}
}
