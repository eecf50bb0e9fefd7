package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gregLibert/sim-bootstrap/pkg/atmodem"
	"github.com/gregLibert/sim-bootstrap/pkg/bootstrap"
	"github.com/gregLibert/sim-bootstrap/pkg/csim"
	"github.com/gregLibert/sim-bootstrap/pkg/lwm2m"
	"github.com/gregLibert/sim-bootstrap/pkg/pcsc"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	verbose := flag.Bool("v", false, "log every AT+CSIM exchange")
	serve := flag.Bool("serve", false, "serve the bootstrap data over HTTP instead of reading it once")
	out := flag.String("out", "", "write the raw bootstrap data to this file")
	transport := flag.String("transport", "", "card access: pcsc or serial")
	reader := flag.String("reader", "", "PC/SC reader name (default: first reader)")
	port := flag.String("port", "", "serial device of the modem")
	listen := flag.String("listen", "", "HTTP listen address in -serve mode")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	override(&cfg.Transport, *transport)
	override(&cfg.Reader, *reader)
	override(&cfg.Serial.Port, *port)
	override(&cfg.Listen, *listen)
	if *port != "" && *transport == "" {
		cfg.Transport = transportSerial
	}
	if err := cfg.normalize(); err != nil {
		log.Fatalf("Error in config: %v", err)
	}

	logger := newLogger(cfg, os.Stderr, *verbose)
	slog.SetDefault(logger)

	if err := run(cfg, logger, *serve, *out); err != nil {
		logger.Error("sim-bootstrap failed", "error", err)
		os.Exit(1)
	}
}

func override(dst *string, flagValue string) {
	if flagValue != "" {
		*dst = flagValue
	}
}

func run(cfg *Config, logger *slog.Logger, serve bool, out string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	modem, closeModem, err := openModem(cfg, logger)
	if err != nil {
		return err
	}
	defer closeModem()

	reg := prometheus.NewRegistry()
	reader := bootstrap.NewReader(modem,
		bootstrap.WithLogger(logger),
		bootstrap.WithMetrics(bootstrap.NewMetrics(reg)),
		bootstrap.WithExchangeMetrics(csim.NewMetrics(reg)),
	)

	if serve {
		err = runServer(ctx, cfg, NewServer(reader, cfg.BufferSize, logger), reg, logger)
	} else {
		err = readOnce(ctx, os.Stdout, reader, cfg.BufferSize, out)
	}

	if cfg.MetricsFile != "" {
		if werr := prometheus.WriteToTextfile(cfg.MetricsFile, reg); werr != nil {
			logger.Warn("write metrics file", "path", cfg.MetricsFile, "error", werr)
		}
	}
	return err
}

// openModem connects the configured transport and returns it with its
// release function.
func openModem(cfg *Config, logger *slog.Logger) (csim.Modem, func(), error) {
	switch cfg.Transport {
	case transportSerial:
		m, err := atmodem.Open(cfg.Serial.Port, cfg.Serial.Baud,
			atmodem.WithTimeout(cfg.Serial.timeout),
			atmodem.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using modem", "port", cfg.Serial.Port, "baud", cfg.Serial.Baud)
		return m, func() {
			if err := m.Close(); err != nil {
				log.Printf("Warning: Failed to close serial port: %v", err)
			}
		}, nil

	default:
		card, err := pcsc.Connect(cfg.Reader)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using reader", "reader", card.Reader())
		return pcsc.NewBridge(card, logger), func() {
			if err := card.Close(); err != nil {
				log.Printf("Warning: Failed to release card: %v", err)
			}
		}, nil
	}
}

// readOnce reads the bootstrap data and prints a hex dump followed by its
// LwM2M content.
func readOnce(ctx context.Context, w io.Writer, reader blobReader, bufferSize int, out string) error {
	buf := make([]byte, bufferSize)
	n, err := reader.Read(ctx, buf)
	if err != nil {
		return err
	}
	blob := buf[:n]

	fmt.Fprintf(w, ">> Bootstrap data (%d bytes)\n", n)
	fmt.Fprint(w, hex.Dump(blob))

	if out != "" {
		if err := os.WriteFile(out, blob, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
	}

	entries, err := lwm2m.Decode(blob)
	if err != nil {
		fmt.Fprintf(w, "\n>> Not LwM2M TLV: %v\n", err)
		return nil
	}
	fmt.Fprintln(w, "\n>> LwM2M Security object")
	return lwm2m.Describe(w, entries)
}

func runServer(ctx context.Context, cfg *Config, s *Server, reg *prometheus.Registry, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewRouter(s, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
