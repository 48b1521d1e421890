package cmd

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var echoAddr string

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Run a TCP echo server",
	RunE:  runEcho,
}

func init() {
	echoCmd.Flags().StringVar(&echoAddr, "addr", ":6970", "listen address")
	rootCmd.AddCommand(echoCmd)
}

func runEcho(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	ln, err := net.Listen("tcp", echoAddr)
	if err != nil {
		printError("listening", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("echo server listening on %s", ln.Addr())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				return err
			}

			logger.Infof("accepted %s", conn.RemoteAddr())
			g.Go(func() error {
				defer conn.Close()
				defer context.AfterFunc(ctx, func() { _ = conn.Close() })()

				n, err := io.Copy(conn, conn)
				logger.Infof("%s went away after %d byte(s)", conn.RemoteAddr(), n)
				if err != nil {
					logger.Debugf("%s: %v", conn.RemoteAddr(), err)
				}
				return nil
			})
		}
	})

	return g.Wait()
}
