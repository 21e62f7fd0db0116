package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"wcp-bridge/server/internal/platform/logging"
)

const (
	defaultFSDB2VCD = "fsdb2vcd_fast"
	defaultVCD2FST  = "vcd2fst"
)

// CommandError reports a failed external tool run.
type CommandError struct {
	Cmd    string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	return "Command failed: " + e.Cmd
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// External converts through an FSDB to VCD tool followed by vcd2fst.
type External struct {
	FSDB2VCD string
	VCD2FST  string
	TempDir  string
}

// NewExternal falls back to GTKWAVE_FSDB2VCD / GTKWAVE_VCD2FST and then to the stock tool
// names when a path is empty.
func NewExternal(fsdb2vcd, vcd2fst, tempDir string) *External {
	return &External{
		FSDB2VCD: firstNonEmpty(fsdb2vcd, os.Getenv("GTKWAVE_FSDB2VCD"), defaultFSDB2VCD),
		VCD2FST:  firstNonEmpty(vcd2fst, os.Getenv("GTKWAVE_VCD2FST"), defaultVCD2FST),
		TempDir:  tempDir,
	}
}

func (e *External) Info() Info {
	return Info{APIVersion: APIVersion, Name: "fsdb-external", Version: "0.1", Vendor: "wcp-bridge"}
}

func (e *External) ConvertToFST(ctx context.Context, in, out string) error {
	tmp, err := os.CreateTemp(e.TempDir, "wcp-fsdb-*.vcd")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpVCD := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpVCD)

	if err := run(ctx, e.FSDB2VCD, in, tmpVCD); err != nil {
		return err
	}
	return run(ctx, e.VCD2FST, "-v", tmpVCD, "-f", out)
}

func run(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	line := commandLine(name, args)
	logging.Component("convert").WithField("cmd", line).Debug("running")
	if err := cmd.Run(); err != nil {
		return &CommandError{Cmd: line, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}

// commandLine renders the invocation the way a shell user would type it.
func commandLine(name string, args []string) string {
	var b strings.Builder
	b.WriteString(name)
	for _, a := range args {
		b.WriteByte(' ')
		if strings.HasPrefix(a, "-") {
			b.WriteString(a)
			continue
		}
		b.WriteString(`"` + a + `"`)
	}
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
