// Copyright © 2024 The QDAP authors

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/luthersystems/qdap/diagnostic"
	"github.com/luthersystems/qdap/engine/tracer"
	"github.com/luthersystems/qdap/srcpos"
	"github.com/spf13/cobra"
)

var runColor string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [flags] file.qasm",
	Short: "Run a program and report failed assertions",
	Long: `Run a program to completion in the reference engine. Every failed
assertion is printed as an annotated source snippet followed by its
potential error causes. The exit status is 1 when any assertion failed or
the program does not parse.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := diagnostic.ParseColorMode(runColor)
		if err != nil {
			return err
		}
		r := &diagnostic.Renderer{Color: mode}
		failures, err := runProgram(cmd.ErrOrStderr(), args[0], r)
		if err != nil {
			return err
		}
		if failures > 0 {
			return &exitError{code: 1}
		}
		return nil
	},
}

// runProgram runs the program at path, rendering each failure to w. It
// returns the number of failures reported, counting a parse error as one.
func runProgram(w io.Writer, path string, r *diagnostic.Renderer) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	code := string(data)
	coords := srcpos.New(code)

	e := tracer.New()
	defer e.Close() //nolint:errcheck
	if err := e.LoadCode(code); err != nil {
		var perr *tracer.ParseError
		if !errors.As(err, &perr) {
			return 0, err
		}
		return 1, r.Render(w, parseErrorDiagnostic(path, coords, perr))
	}

	var diags []diagnostic.Diagnostic
	for {
		if err := e.RunSimulation(); err != nil {
			return len(diags), fmt.Errorf("%s: %w", path, err)
		}
		if !e.DidAssertionFail() {
			break
		}
		d, err := assertionDiagnostic(e, path, code, coords)
		if err != nil {
			return len(diags), err
		}
		diags = append(diags, d)
	}
	return len(diags), r.RenderAll(w, diags)
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runColor, "color", "auto",
		`Control colored output: "auto", "always", or "never".`)
}
