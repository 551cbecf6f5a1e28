package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"emberpost/internal/app"
	"emberpost/pkg/banner"
	"emberpost/pkg/config"
	"emberpost/pkg/logger"
)

// build metadata - set via ldflags during build/release
var version = "dev"

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, endpointVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// flags win over env/config when explicitly provided
	if setFlags["addr"] {
		cfg.Server.Address, cfg.Server.Port = splitAddr(addrVal)
	}
	if setFlags["db"] || cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = dbVal
	}
	if setFlags["remote"] {
		cfg.Remote.Endpoint = endpointVal
	}

	logger.InitWithLevel(cfg.Logging.Level)

	srcs := []string{"flags"}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := config.Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}

	a, err := app.New(cfg, version)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	banner.Print(cfg.Addr(), cfg.Storage.DBPath, cfg.Remote.Endpoint, strings.Join(srcs, ", "), version)

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String())
		cancel()
	}()

	if err := a.Run(ctx); err != nil {
		log.Fatal(err)
	}
}

func splitAddr(v string) (string, int) {
	h, p, err := net.SplitHostPort(v)
	if err != nil {
		return v, 0
	}
	pi, err := strconv.Atoi(p)
	if err != nil {
		return h, 0
	}
	return h, pi
}
