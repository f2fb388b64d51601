package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"

	"github.com/spotforge/spotforge/internal/config"
	"github.com/spotforge/spotforge/internal/server"
)

var (
	flagAddr   = flag.String("addr", "", "Address to listen on (default: the configured listen_addr)")
	flagConfig = flag.String("config", "", "Path to a YAML config file (default: built-in defaults)")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cfg := config.Default()
	if *flagConfig != "" {
		var err error
		cfg, err = config.Load(*flagConfig)
		if err != nil {
			log.Fatal(err)
		}
	}
	addr := cfg.ListenAddr
	if *flagAddr != "" {
		addr = *flagAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := make(chan *server.State, 1)
	go func() {
		state := <-started
		fmt.Printf("spotforge server listening on http://%s\n", state.Address)
	}()

	if err := server.Run(ctx, addr, cfg, started); err != nil {
		log.Fatal(err)
	}
}
