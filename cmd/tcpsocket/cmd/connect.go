package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lithdew/bytesutil"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TheSmallBoat/tcpsocket/config"
	"github.com/TheSmallBoat/tcpsocket/tcpsocket"
)

// header is a 4-byte sequence number followed by a 2-byte worker id.
const headerSize = 6

var (
	connectHost        string
	connectPort        int
	connectInterval    time.Duration
	connectPayloadSize int
	connectWorkers     int
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect and send buffers until interrupted",
	Long: `Connects to the configured endpoint and sends a fixed-size buffer from
every worker at a fixed interval. Every connection event is logged. When the
connection drops the client redials with backoff.`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectHost, "host", "", "remote host (default from config: localhost)")
	connectCmd.Flags().IntVar(&connectPort, "port", 0, "remote port (default from config: 6970)")
	connectCmd.Flags().DurationVar(&connectInterval, "interval", 0, "delay between buffers (default from config: 250ms)")
	connectCmd.Flags().IntVar(&connectPayloadSize, "size", 0, "buffer size in bytes (default from config: 128)")
	connectCmd.Flags().IntVar(&connectWorkers, "workers", 0, "concurrent senders (default from config: 1)")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	f, err := loadConfig()
	if err != nil {
		printError("loading config", err)
		return err
	}
	applyConnectFlags(f)

	if f.Driver.PayloadSize < headerSize {
		return fmt.Errorf("buffer size must be at least %d bytes", headerSize)
	}

	logger := newLogger()
	cfg, err := f.SocketConfig(logger)
	if err != nil {
		printError("building socket config", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	newSocket := func() *tcpsocket.Socket {
		s := tcpsocket.New(cfg)
		logEvents(s, logger)
		return s
	}

	for ctx.Err() == nil {
		s, err := tcpsocket.Redial(ctx, newSocket, f.Driver.Host, f.Driver.Port, f.RedialPolicy())
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			printError("connecting", err)
			return err
		}

		err = drive(ctx, s, f.Driver)
		_ = s.Close()

		st := s.Stats()
		logger.Infof("[%s] sent %d message(s) (%d bytes), %d failed, received %d bytes",
			s.ID(), st.MessagesSent, st.BytesSent, st.MessagesFailed, st.BytesReceived)

		if err != nil {
			return err
		}
	}

	return nil
}

func applyConnectFlags(f *config.File) {
	if connectHost != "" {
		f.Driver.Host = connectHost
	}
	if connectPort != 0 {
		f.Driver.Port = connectPort
	}
	if connectInterval != 0 {
		f.Driver.Interval.Duration = connectInterval
	}
	if connectPayloadSize != 0 {
		f.Driver.PayloadSize = connectPayloadSize
	}
	if connectWorkers != 0 {
		f.Driver.Workers = connectWorkers
	}
}

// drive runs the senders until ctx is cancelled or the socket closes.
func drive(ctx context.Context, s *tcpsocket.Socket, d config.DriverConfig) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < d.Workers; i++ {
		worker := uint16(i)
		g.Go(func() error {
			ticker := time.NewTicker(d.Interval.Duration)
			defer ticker.Stop()

			buf := make([]byte, d.PayloadSize)
			for seq := uint32(0); ; seq++ {
				select {
				case <-ctx.Done():
					return nil
				case <-s.Done():
					return nil
				case <-ticker.C:
				}

				stampHeader(buf, seq, worker)

				sent, err := s.SendContext(ctx, buf)
				if err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				if !sent && s.IsConnected() {
					return fmt.Errorf("worker %d: buffer %d was not sent", worker, seq)
				}
			}
		})
	}

	return g.Wait()
}

// stampHeader writes the sequence number and worker id to the front of buf.
func stampHeader(buf []byte, seq uint32, worker uint16) {
	header := bytesutil.AppendUint16BE(bytesutil.AppendUint32BE(make([]byte, 0, headerSize), seq), worker)
	copy(buf, header)
}

func logEvents(s *tcpsocket.Socket, logger tcpsocket.Logger) {
	s.OnConnected(func(ev tcpsocket.ConnectedEvent) error {
		logger.Infof("[%s] connected to %s", ev.SocketID, ev.RemoteAddr)
		return nil
	})
	s.OnDisconnected(func(ev tcpsocket.DisconnectedEvent) error {
		logger.Infof("[%s] disconnected from %s", ev.SocketID, ev.RemoteAddr)
		return nil
	})
	s.OnBufferSent(func(ev tcpsocket.BufferSentEvent) error {
		logger.Debugf("[%s] sent %d byte(s), sequence %d", ev.SocketID, ev.BytesWritten, bytesutil.Uint32BE(ev.Buffer[:4]))
		return nil
	})
	s.OnBufferReceived(func(ev tcpsocket.BufferReceivedEvent) error {
		logger.Debugf("[%s] received %d byte(s)", ev.SocketID, ev.BytesRead)
		return nil
	})
}
