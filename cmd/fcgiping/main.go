// Command fcgiping dials a FastCGI responder, issues one request, and
// prints the response (or the error) to stdout/stderr. It exists to
// exercise the library end to end, the way caddy's cmd/caddy exercises the
// server side of a similar stack; it is a consumer of github.com/riftlabs/fcgx,
// not part of it.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/riftlabs/fcgx"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		network    string
		address    string
		scriptPath string
		method     string
		timeout    time.Duration
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "fcgiping",
		Short: "Send one request to a FastCGI responder and print its response",
		Long: `fcgiping dials a FastCGI application process (for example a PHP-FPM
pool) over TCP or a Unix socket, sends a single request built from the
given script path and method, and prints STDOUT/STDERR as received.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, network, address, scriptPath, method, timeout, verbose)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&network, "network", "tcp", `transport network ("tcp" or "unix")`)
	flags.StringVar(&address, "address", "127.0.0.1:9000", "address or socket path to dial")
	flags.StringVar(&scriptPath, "script", "", "SCRIPT_FILENAME to request (required)")
	flags.StringVar(&method, "method", "GET", "REQUEST_METHOD to send")
	flags.DurationVar(&timeout, "timeout", 10*time.Second, "overall request timeout")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log protocol-level debug output")

	cobra.CheckErr(cmd.MarkFlagRequired("script"))

	return cmd
}

func run(cmd *cobra.Command, network, address, scriptPath, method string, timeout time.Duration, verbose bool) error {
	logger := logrus.New()
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := fcgx.DialContext(ctx, network, address)
	if err != nil {
		return fmt.Errorf("dialing %s %s: %w", network, address, err)
	}

	client := fcgx.NewShortLived(conn, fcgx.WithLogger(logrus.NewEntry(logger)))
	defer client.Close()

	params := fcgx.NewParams().
		RequestMethod(strings.ToUpper(method)).
		ScriptFilename(scriptPath).
		ScriptName("/" + trimLeadingSlash(scriptPath)).
		ServerProtocol("HTTP/1.1").
		GatewayInterface("CGI/1.1").
		ContentLength("0")

	resp, err := client.Execute(ctx, fcgx.NewRequest(params, nil))
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}

	if len(resp.Stderr) > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), string(resp.Stderr))
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(resp.Stdout))
	return nil
}

func trimLeadingSlash(p string) string {
	return strings.TrimPrefix(p, "/")
}
