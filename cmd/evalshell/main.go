package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/guseggert/evalshell/repl"
	"github.com/guseggert/evalshell/transport"
)

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".evalshell_history")
}

func main() {
	app := &cli.App{
		Name:      "evalshell",
		Usage:     "shell-like client for remote expression-evaluation services",
		ArgsUsage: "<host> <port>",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:    "timeout",
				Aliases: []string{"T"},
				Usage:   "idle read timeout in seconds after each request",
				Value:   0.35,
			},
			&cli.StringFlag{
				Name:  "history",
				Usage: "path to the line history file",
				Value: defaultHistoryPath(),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging on stderr",
			},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 2 {
				return fmt.Errorf("expected <host> <port>, got %d args", ctx.NArg())
			}
			host := ctx.Args().Get(0)
			port, err := strconv.Atoi(ctx.Args().Get(1))
			if err != nil {
				return fmt.Errorf("parsing port %q: %w", ctx.Args().Get(1), err)
			}

			logger := zap.NewNop()
			if ctx.Bool("verbose") {
				logger, err = zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("building logger: %w", err)
				}
			}

			window := time.Duration(ctx.Float64("timeout") * float64(time.Second))

			conn, err := transport.Dial(
				net.JoinHostPort(host, strconv.Itoa(port)),
				transport.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			prompter := repl.NewLinePrompter(ctx.String("history"))
			defer prompter.Close()

			sess := &repl.Session{
				Logger:   logger.Named("session").Sugar(),
				Conn:     conn,
				Window:   window,
				Prompter: prompter,
				Out:      os.Stdout,
			}
			return sess.Run()
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
