package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/danmuck/connrelay/internal/logging"
	"github.com/danmuck/connrelay/internal/relay"
	"gopkg.in/alecthomas/kingpin.v2"
)

type options struct {
	addr    string
	timeout time.Duration
	retries int
}

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Blocking client for relayd.")

	var opts options
	app.Flag("addr", "relayd address.").Short('a').Envar("CONNRELAY_ADDR").Default(relay.DefaultListenAddr).StringVar(&opts.addr)
	app.Flag("timeout", "Per-call timeout.").Short('t').Default("15s").DurationVar(&opts.timeout)
	app.Flag("retries", "Extra attempts while the connection is checked out elsewhere.").Default("0").IntVar(&opts.retries)

	var (
		openCmd  = app.Command("open", "Open a connection and print its id.")
		openURL  = openCmd.Arg("url", "Connection URL, e.g. ws://db.local:8000.").Required().String()
		closeCmd = app.Command("close", "Close a connection.")
		closeID  = closeCmd.Arg("id", "Connection id.").Required().String()
		checkCmd = app.Command("check", "Report whether a connection is open.")
		checkID  = checkCmd.Arg("id", "Connection id.").Required().String()
		statsCmd = app.Command("stats", "Print registry occupancy.")
	)

	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	logging.ConfigureRuntime("relayctl")

	var err error
	switch command {
	case openCmd.FullCommand():
		err = run(opts, os.Stdout, func(ctx context.Context, c *relay.Client, w io.Writer) error {
			id, err := c.Open(ctx, *openURL)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, id)
			return err
		})
	case closeCmd.FullCommand():
		err = run(opts, os.Stdout, func(ctx context.Context, c *relay.Client, w io.Writer) error {
			if err := c.Close(ctx, *closeID); err != nil {
				return err
			}
			_, err := fmt.Fprintln(w, "ok")
			return err
		})
	case checkCmd.FullCommand():
		err = run(opts, os.Stdout, func(ctx context.Context, c *relay.Client, w io.Writer) error {
			alive, err := c.Check(ctx, *checkID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, alive)
			return err
		})
	case statsCmd.FullCommand():
		err = run(opts, os.Stdout, func(ctx context.Context, c *relay.Client, w io.Writer) error {
			st, err := c.Stats(ctx)
			if err != nil {
				return err
			}
			return json.NewEncoder(w).Encode(st)
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
		os.Exit(1)
	}
}

// run executes one client call under the timeout, retrying while the target
// connection is checked out by someone else.
func run(opts options, w io.Writer, call func(context.Context, *relay.Client, io.Writer) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	cfg := relay.DefaultClientConfig()
	cfg.Addr = opts.addr
	client := relay.NewClient(cfg)

	retry := relay.DefaultRetryConfig()
	retry.Attempts = 1 + max(opts.retries, 0)
	return relay.Retry(ctx, retry, func(ctx context.Context) error {
		return call(ctx, client, w)
	})
}
