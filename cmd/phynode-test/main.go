// phynode-test runs the bench sequence against a phyNODE over UDP.
//
// Usage:
//
//	phynode-test [flags] ADDR ADDR
//
// Two addresses are accepted for compatibility with the older two-node bench
// script. Only the second one is probed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"phynode_probe/internal/metrics"
	"phynode_probe/internal/plan"
	"phynode_probe/internal/probe"
	"phynode_probe/internal/runner"
	"phynode_probe/internal/shared/config"
	"phynode_probe/internal/shared/logger"
	"phynode_probe/internal/shared/types"
)

const iniConfigName = "phynode.ini"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit status: 0 after FINISH, 1 on a failed run,
// 2 on a usage error.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("phynode-test", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("configdir", "configs", "Path to config directory")
	planPath := fs.String("plan", "", "YAML probe plan (default: built-in bench sequence)")
	lenient := fs.Bool("lenient", false, "return the last reply when no datagram matches instead of failing")
	port := fs.Int("port", types.DefaultPort, "UDP port of the node")
	localPort := fs.Int("local-port", types.DefaultPort, "local UDP port to bind, 0 for ephemeral")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: phynode-test [flags] ADDR ADDR\n\nTest the udp communication with the phyNODE.\nOnly the second IPv6 address is probed.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintf(stderr, "error: expected 2 addresses, got %d\n", fs.NArg())
		fs.Usage()
		return 2
	}
	peerAddr, targetAddr := fs.Arg(0), fs.Arg(1)

	iniPath := filepath.Join(*configDir, iniConfigName)
	cfg, err := config.Load(iniPath)
	if err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		return 1
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lenient":
			cfg.Lenient = *lenient
		case "port":
			cfg.Port = *port
		case "local-port":
			cfg.LocalPort = *localPort
		}
	})
	if err := cfg.ProbeConf.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	if err := logger.InitWithWriter(cfg.LogConf, stderr); err != nil {
		fmt.Fprintf(stderr, "Fatal: Failed to initialize logger: %v\n", err)
		return 1
	}

	p := plan.Default()
	if *planPath != "" {
		if p, err = plan.Load(*planPath); err != nil {
			logger.Error().Err(err).Msg("Failed to load plan")
			return 1
		}
	}

	fmt.Fprintln(stdout, fs.Args())
	logger.Info().Str("peer_addr", peerAddr).Str("target", targetAddr).Int("port", cfg.Port).
		Int("steps", len(p.Steps)).Msg("Starting phyNODE test")

	m := metrics.NewProbeMetrics()
	prober, err := probe.New(ctx, targetAddr, cfg.ProbeConf, probe.WithRecorder(m))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create prober")
		return 1
	}
	defer prober.Close()

	_, runErr := runner.New(prober, stdout).Run(ctx, p)

	txP, rxP, txB, rxB := prober.Stats()
	logger.Debug().Int("tx_packets", int(txP)).Int("rx_packets", int(rxP)).
		Int("tx_bytes", int(txB)).Int("rx_bytes", int(rxB)).Msg("Socket totals")

	if cfg.Textfile != "" {
		if err := m.WriteTextfile(cfg.Textfile); err != nil {
			logger.Warn().Err(err).Msg("Failed to write metrics")
		}
	}

	if runErr != nil {
		var commErr *probe.CommunicationError
		if errors.As(runErr, &commErr) {
			logger.Error().Err(runErr).Str("command", commErr.Command).Int("attempts", commErr.Attempts).
				Msg("Communication Error")
		} else {
			logger.Error().Err(runErr).Msg("Run failed")
		}
		return 1
	}
	return 0
}
