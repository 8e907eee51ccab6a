// Copyright © 2024 The QDAP authors

package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/luthersystems/qdap/dapserver"
	"github.com/luthersystems/qdap/engine/tracer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// readyLine tells a client that launched the adapter that it may connect.
const readyLine = "Initialization complete"

var serveCmd = &cobra.Command{
	Use:   "serve [flags]",
	Short: "Start a DAP server",
	Long: `Start a Debug Adapter Protocol server for editors (VS Code, Neovim,
Helix, etc.) to connect to. The server handles a single client and exits
when that client disconnects.

Transport modes:
  --host H --port N   Listen for a DAP client on TCP (default: 127.0.0.1:4711)
  --stdio             Use stdin/stdout for DAP communication (for editors that
                      launch the debug adapter as a child process)

In TCP mode the line "Initialization complete" is printed once the server
is listening.

Examples:
  qdap serve                        Listen on 127.0.0.1:4711
  qdap serve --port 9229            Listen on 127.0.0.1:9229
  qdap serve --stdio                Use the stdio transport
  qdap serve --trace --log-level debug
                                    Log one span per request`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(viper.GetViper(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		opts := []dapserver.Option{dapserver.WithLogger(logrus.NewEntry(log))}
		if viper.GetBool("trace") {
			tp := newTracerProvider(log)
			defer tp.Shutdown(context.Background()) //nolint:errcheck
			opts = append(opts, dapserver.WithTracerProvider(tp))
		}
		srv := dapserver.New(tracer.Factory, opts...)

		if viper.GetBool("stdio") {
			log.Info("using stdio transport")
			return srv.ServeStdio(os.Stdin, os.Stdout)
		}
		addr := net.JoinHostPort(viper.GetString("host"), strconv.Itoa(viper.GetInt("port")))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("cannot listen on %s: %w", addr, err)
		}
		defer ln.Close() //nolint:errcheck
		log.WithField("addr", ln.Addr().String()).Info("listening")
		return serveListener(srv, ln, cmd.OutOrStdout())
	},
}

// serveListener announces readiness and serves one client from ln.
func serveListener(srv *dapserver.Server, ln net.Listener, out io.Writer) error {
	if _, err := fmt.Fprintln(out, readyLine); err != nil {
		return err
	}
	if err := srv.ServeListener(ln); err != nil {
		return fmt.Errorf("dap server: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("host", "127.0.0.1", "Address to listen on")
	flags.Int("port", 4711, "TCP port for the DAP server")
	flags.Bool("stdio", false, "Use stdin/stdout for DAP communication")
	flags.Bool("trace", false, "Log a span for every DAP request")
	mustBind(flags.Lookup("host"), flags.Lookup("port"), flags.Lookup("stdio"), flags.Lookup("trace"))
}
