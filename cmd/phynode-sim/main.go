// phynode-sim answers phyNODE bench commands on UDP, for running
// phynode-test without hardware.
//
// By default it replies to port 23025 on the sender's address like the real
// firmware, so on a single host run it on another port:
//
//	phynode-sim -listen '[::1]:23026'
//	phynode-test -port 23026 ::1 ::1
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"phynode_probe/internal/shared/logger"
	"phynode_probe/internal/shared/types"
	"phynode_probe/internal/simnode"
)

func main() {
	listen := flag.String("listen", fmt.Sprintf("[::]:%d", types.DefaultPort), "UDP address to serve on")
	replyPort := flag.Int("reply-port", types.DefaultPort, "fixed port to reply to, 0 replies to the source port")
	drop := flag.Int("drop", 0, "ignore the first N datagrams")
	noise := flag.Int("noise", 0, "send N non-matching datagrams before each reply")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	if err := logger.Init(types.LogConf{Level: *level}); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, err := simnode.Listen(ctx, *listen, simnode.Options{
		Readings:  simnode.DefaultReadings(),
		ReplyPort: *replyPort,
		DropFirst: *drop,
		Noise:     *noise,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start simulated node")
	}
	if err := node.Serve(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Simulated node stopped")
	}
	logger.Info().Int("received", node.Received()).Msg("Simulated node shut down")
}
