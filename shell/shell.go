// Package shell runs the external programs the pipelines are built on.
package shell

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// stderrTail is the number of bytes of a failed command's stderr kept in the error.
const stderrTail = 2048

// Runner executes commands one at a time. Env entries are added on top of the
// process environment for every child. When DryRun is set commands are
// printed to Stderr as "Run: <cmd>" and nothing is executed.
type Runner struct {
	DryRun bool
	Stdout io.Writer
	Stderr io.Writer
	env    []string
}

// New returns a Runner writing child output to the process stdout and stderr.
func New(dryRun bool) *Runner {
	return &Runner{DryRun: dryRun, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Setenv sets key=value for all commands started after the call.
func (r *Runner) Setenv(key, value string) {
	prefix := key + "="
	for i := range r.env {
		if strings.HasPrefix(r.env[i], prefix) {
			r.env[i] = prefix + value
			return
		}
	}
	r.env = append(r.env, prefix+value)
}

// Getenv returns the value set with Setenv, or "" if the key was never set.
func (r *Runner) Getenv(key string) string {
	prefix := key + "="
	for i := range r.env {
		if strings.HasPrefix(r.env[i], prefix) {
			return strings.TrimPrefix(r.env[i], prefix)
		}
	}
	return ""
}

// Format renders a command the way it would be typed in a shell.
func Format(name string, args ...string) string {
	s := new(strings.Builder)
	s.WriteString(quote(name))
	for i := range args {
		s.WriteByte(' ')
		s.WriteString(quote(args[i]))
	}
	return s.String()
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n'\"$`\\|&;<>()*?[]{}!#~") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

func (r *Runner) command(name string, args []string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	return cmd
}

func (r *Runner) printDry(name string, args []string) {
	w := r.Stderr
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "Run: %s\n", Format(name, args...))
}

// Run executes the command and waits for it. Child stdout goes to r.Stdout.
func (r *Runner) Run(name string, args ...string) error {
	if r.DryRun {
		r.printDry(name, args)
		return nil
	}
	log.Debugf("running: %s", Format(name, args...))
	cmd := r.command(name, args)
	cmd.Stdout = r.Stdout
	errBuf := new(bytes.Buffer)
	if r.Stderr != nil {
		cmd.Stderr = io.MultiWriter(r.Stderr, errBuf)
	} else {
		cmd.Stderr = errBuf
	}
	if err := cmd.Run(); err != nil {
		return failure(err, name, args, errBuf.Bytes())
	}
	return nil
}

// Output executes the command and returns its stdout. It always executes,
// including in dry-run mode, and is meant for commands that only read state.
func (r *Runner) Output(name string, args ...string) (string, error) {
	log.Debugf("running: %s", Format(name, args...))
	cmd := r.command(name, args)
	errBuf := new(bytes.Buffer)
	cmd.Stderr = errBuf
	out, err := cmd.Output()
	if err != nil {
		return "", failure(err, name, args, errBuf.Bytes())
	}
	return string(out), nil
}

func failure(err error, name string, args []string, stderr []byte) error {
	if len(stderr) > stderrTail {
		stderr = stderr[len(stderr)-stderrTail:]
	}
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return errors.Wrapf(err, "command failed: %s", Format(name, args...))
	}
	return errors.Wrapf(err, "command failed: %s\n%s", Format(name, args...), msg)
}

// LookPath reports the first of the named programs that cannot be found.
func LookPath(names ...string) error {
	for _, n := range names {
		if _, err := exec.LookPath(n); err != nil {
			return errors.Errorf("%s not found. Install it or set its path in aoutools.yaml", n)
		}
	}
	return nil
}
