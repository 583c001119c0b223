package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roman-kulish/lap-telemetry/internal/provider/archive"
	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var level slog.LevelVar
	cmd := NewRootCommand(slog.New(slog.NewTextHandler(io.Discard, nil)), &level)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	root := t.TempDir()
	sessions := filepath.Join(root, "sessions")

	data := &telemetry.SessionData{
		Session: silverstone,
		Drivers: []telemetry.DriverData{
			{Code: "HAM", Laps: []telemetry.RawLap{rawLap(1, 20.5, 0), rawLap(2, 20, 0)}},
			{Code: "NOR", Laps: []telemetry.RawLap{rawLap(1, 19.5, 200)}},
		},
	}
	if _, err := archive.New(sessions).Save(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	config := writeConfig(t, fmt.Sprintf("provider:\n  archive:\n    root: %q\nalign:\n  frameCount: 5\n", sessions))
	common := []string{"-c", config, "--db", filepath.Join(root, "cache.db"), "--log-level", "debug"}
	session := []string{"--season", "2024", "--event", "British Grand Prix", "--session", "Q"}

	out, err := runCommand(t, append(append([]string{"ingest"}, common...), session...)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Laps:     3") {
		t.Errorf("unexpected ingest output:\n%s", out)
	}

	out, err = runCommand(t, append([]string{"sessions"}, common...)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, silverstone.String()) {
		t.Errorf("unexpected sessions output:\n%s", out)
	}

	out, err = runCommand(t, append(append([]string{"drivers"}, common...), session...)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "HAM NOR" {
		t.Errorf("unexpected drivers output: %q", out)
	}

	out, err = runCommand(t, append(append([]string{"laps", "--driver", "HAM"}, common...), session...)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "0:20.500 slowest") || !strings.Contains(lines[1], "0:20.000 fastest") {
		t.Errorf("unexpected laps output:\n%s", out)
	}

	dir := filepath.Join(root, "frames")
	render := []string{"render", "--driver", "HAM", "--lap", "1", "--variable", "throttle", "--out", dir}
	if _, err = runCommand(t, append(append(render, common...), session...)...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matches, _ := filepath.Glob(filepath.Join(dir, "*.png")); len(matches) != 5 {
		t.Errorf("expected 5 frames, got %d", len(matches))
	}

	_, err = runCommand(t, append(append([]string{"render", "--driver", "HAM", "--variable", "drs"}, common...), session...)...)
	if err == nil {
		t.Error("expected error for unknown variable")
	}
}

func TestCommands_Export(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh is not available")
	}

	root := t.TempDir()
	sessions := filepath.Join(root, "sessions")

	script := strings.Join([]string{
		"cat <<'EOF'",
		`{"type":"sample","driver":"HAM","lap":1,"time":0,"distance":0,"x":0,"y":0,"speed":150,"throttle":100,"gear":3,"rpm":9000}`,
		`{"type":"sample","driver":"HAM","lap":1,"time":10,"distance":500,"x":500,"y":0,"speed":200,"throttle":100,"gear":5,"rpm":11000}`,
		`{"type":"lap","driver":"HAM","lap":1,"lapTime":20}`,
		"EOF",
	}, "\n")
	config := writeConfig(t, fmt.Sprintf("provider:\n  type: command\n  archive:\n    root: %q\n  command:\n    path: %q\n    args: [\"-c\", %q]\n",
		sessions, sh, script))
	common := []string{"-c", config, "--db", filepath.Join(root, "cache.db")}

	out, err := runCommand(t, append(append([]string{"export"}, common...), "--season", "2024", "--event", "British Grand Prix", "--session", "qualifying")...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := archive.New(sessions)
	want, err := p.Path(silverstone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != want+".yaml" {
		t.Errorf("unexpected export output: %q", out)
	}

	data, err := p.Fetch(context.Background(), silverstone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.Session != silverstone || len(data.Drivers) != 1 || len(data.Drivers[0].Laps) != 1 || len(data.Drivers[0].Laps[0].Samples) != 2 {
		t.Errorf("unexpected archived session %+v", data)
	}
}
