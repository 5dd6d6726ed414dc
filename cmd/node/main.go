// nfchain node: entry, relay or exit hop of a tunnel chain.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"dev.c0redev.nfchain/internal/config"
	"dev.c0redev.nfchain/internal/logging"
	"dev.c0redev.nfchain/internal/node"
	"dev.c0redev.nfchain/internal/store"
	"dev.c0redev.nfchain/internal/transport"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args, os.Stderr)
	if err == flag.ErrHelp {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "nfchain-node:", err)
		return 1
	}
	log, _ := logging.New(logging.Options{Debug: cfg.Debug, File: cfg.LogFile})
	defer log.Sync()

	opts := []node.Option{node.WithLogger(log)}
	if cfg.Ledger != "" {
		db, err := store.Open(cfg.Ledger)
		if err != nil {
			log.Error("open ledger", zap.String("path", cfg.Ledger), zap.Error(err))
			return 1
		}
		defer db.Close()
		opts = append(opts, node.WithLedger(db))
	}

	ln, err := transport.Listen(cfg.Chain.ListenAddress, transport.ListenOptions{ProxyProtocol: cfg.ProxyProtocol})
	if err != nil {
		log.Error("listen", zap.Error(err))
		return 1
	}
	srv := node.New(&cfg.Chain, opts...)
	log.Warn("nfchain node started",
		zap.String("listen", cfg.Chain.ListenAddress),
		zap.Stringer("mode", cfg.Chain.Mode()),
		zap.String("crypt", cfg.Chain.Cipher.Name()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		log.Warn("shutting down")
		srv.Close()
		<-errc
		return 0
	case err := <-errc:
		srv.Close()
		if err != nil {
			log.Error("serve", zap.Error(err))
			return 1
		}
		return 0
	}
}
