// nfchain client: opens a chain and pipes stdin/stdout through it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dev.c0redev.nfchain/internal/chain"
	"dev.c0redev.nfchain/internal/client"
	"dev.c0redev.nfchain/internal/config"
	"dev.c0redev.nfchain/internal/crypto"
	"dev.c0redev.nfchain/internal/logging"
	"dev.c0redev.nfchain/internal/transport"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("nfchain-client", flag.ContinueOnError)
	link := fs.String("chain", "", "hops then target, comma separated (quic:// hops allowed)")
	alg := fs.String("crypt", crypto.AlgNone, "payload crypt: none, rc4, aes, chacha20")
	key := fs.String("key", os.Getenv(config.EnvKey), "crypt key; env "+config.EnvKey)
	timeout := fs.Duration("dial-timeout", chain.DefaultDialTimeout, "chain setup timeout")
	debug := fs.Bool("debug", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}
	log, _ := logging.New(logging.Options{Debug: *debug})
	defer log.Sync()

	hops := chain.SplitHops(*link)
	if len(hops) == 0 {
		fmt.Fprintln(os.Stderr, "nfchain-client: -chain required")
		return 1
	}
	c, err := crypto.New(*alg, *key)
	if err != nil {
		fmt.Fprintln(os.Stderr, "nfchain-client:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	dialCtx, cancel := context.WithTimeout(ctx, *timeout)
	conn, err := client.Dial(dialCtx, transport.NewDialer(*timeout), c, hops)
	cancel()
	if err != nil {
		log.Error("open chain", zap.Strings("chain", hops), zap.Error(err))
		return 1
	}
	defer conn.Close()
	log.Debug("chain open", zap.Strings("chain", hops))

	up := make(chan error, 1)
	down := make(chan error, 1)
	go func() {
		_, err := io.Copy(conn, os.Stdin)
		if cw, ok := conn.(interface{ CloseWrite() error }); ok {
			cw.CloseWrite()
		}
		up <- err
	}()
	go func() {
		_, err := io.Copy(os.Stdout, conn)
		down <- err
	}()

	var perr error
	select {
	case <-ctx.Done():
		return 0
	case perr = <-down:
	case perr = <-up:
		if perr == nil {
			// stdin done; the reply drains until the chain closes
			select {
			case perr = <-down:
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
		}
	}
	if perr != nil {
		log.Warn("pipe", zap.Error(perr))
		return 1
	}
	return 0
}
