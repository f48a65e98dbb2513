package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags puts every flag back to its default; cobra keeps parsed
// values between Execute calls.
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("hangar %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("database:\n  path: %s\nevidence:\n  dir: %s\n",
		filepath.Join(dir, "hangar.db"), filepath.Join(dir, "evidence"))
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func mustContain(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCommands_SessionFlow(t *testing.T) {
	cfgPath := writeConfig(t)

	out := run(t, cfgPath, "wo", "create", "--findings", "2", "--customer", "Garuda")
	m := regexp.MustCompile(`Created work order (\d{6})`).FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no work order id in %q", out)
	}
	finding := m[1] + "-01"

	out = run(t, cfgPath, "start", m[1]+"/1", "--emp", "a123", "--task", "t1", "--no-ui")
	mustContain(t, out, "A123 started task T1 on finding "+finding)

	out = run(t, cfgPath, "start", finding, "--emp", "B456", "--task", "T2", "--no-ui")
	mustContain(t, out, "already being worked", "A123", "--join")

	out = run(t, cfgPath, "start", finding, "--emp", "A123", "--task", "T1", "--no-ui", "--join")
	mustContain(t, out, "A123 already has an open session")

	out = run(t, cfgPath, "status")
	mustContain(t, out, finding, "A123", "T1")

	out = run(t, cfgPath, "stop", finding, "--emp", "A123")
	mustContain(t, out, "invalid disposition")

	out = run(t, cfgPath, "stop", finding, "--emp", "A123", "-d", "closed")
	mustContain(t, out, "Finding status: CLOSED", "without evidence")

	out = run(t, cfgPath, "start", finding, "--emp", "B456", "--task", "T2", "--no-ui")
	mustContain(t, out, "is closed")

	out = run(t, cfgPath, "status", finding)
	mustContain(t, out, "Finding "+finding+": CLOSED", "over 1 session(s)")

	out = run(t, cfgPath, "history", finding)
	mustContain(t, out, "START", "STOP", "CLOSED")

	out = run(t, cfgPath, "wo", "show", m[1])
	mustContain(t, out, finding, "CLOSED", m[1]+"-02", "OPEN", "Garuda")
}

func TestCommands_FindingAndMaterials(t *testing.T) {
	cfgPath := writeConfig(t)

	out := run(t, cfgPath, "wo", "create", "--findings", "1")
	m := regexp.MustCompile(`Created work order (\d{6})`).FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no work order id in %q", out)
	}
	finding := m[1] + "-01"

	out = run(t, cfgPath, "finding", "describe", finding, "--desc", "Dent on flap")
	mustContain(t, out, "Description: Dent on flap")

	out = run(t, cfgPath, "material", "add", finding, "--name", "MS20995C32", "--qty", "2", "--unit", "FT")
	mustContain(t, out, "Added 2 FT MS20995C32")

	out = run(t, cfgPath, "material", "rm", finding, "2")
	mustContain(t, out, "no material #2")

	out = run(t, cfgPath, "material", "rm", finding, "1")
	mustContain(t, out, "Removed MS20995C32")

	out = run(t, cfgPath, "wo", "set", m[1], "ac_reg", "pk-glm")
	mustContain(t, out, "ac_reg updated")

	out = run(t, cfgPath, "wo", "ls")
	mustContain(t, out, m[1], "PK-GLM")
}

func TestCommands_BadFindingRef(t *testing.T) {
	cfgPath := writeConfig(t)
	out := run(t, cfgPath, "status", "not-a-finding")
	mustContain(t, out, "invalid finding reference")
}

func TestVersion(t *testing.T) {
	SetVersion("1.2.3", "abc", "today")
	defer SetVersion("dev", "none", "unknown")
	out := run(t, writeConfig(t), "version")
	mustContain(t, out, "hangar 1.2.3 (commit abc")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"much longer than that", 10, "much lo..."},
		{"abcdef", 2, "ab"},
		{"Überprüfung Fahrwerk", 10, "Überprü..."},
		{"主翼後桁腐食点検", 7, "主翼..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
