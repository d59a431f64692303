package vaultd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/ogazboiz/sonic-rush/client"
	"github.com/ogazboiz/sonic-rush/observability/logging"
	telemetry "github.com/ogazboiz/sonic-rush/observability/otel"
)

// Main initialises and runs the vault sync daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/vaultd/config.yaml", "path to vaultd configuration")
	flag.Parse()

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("SONIC_ENV"))
	log := logging.Setup("vaultd", env, logging.Options{FilePath: cfg.LogFile})

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "vaultd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	contract := common.Address{}
	if trimmed := strings.TrimSpace(cfg.RPC.Contract); trimmed != "" {
		if !common.IsHexAddress(trimmed) {
			return fmt.Errorf("vaultd: malformed contract address %q", trimmed)
		}
		contract = common.HexToAddress(trimmed)
	} else {
		if contract, err = client.ContractAddress(cfg.RPC.ChainID); err != nil {
			return err
		}
	}

	var clientOpts []client.Option
	signerHex, err := cfg.Signer.ResolveSignerKey()
	if err != nil {
		return err
	}
	if signerHex != "" {
		key, err := gethcrypto.HexToECDSA(strings.TrimPrefix(signerHex, "0x"))
		if err != nil {
			return fmt.Errorf("vaultd: parse signer key: %w", err)
		}
		sender := gethcrypto.PubkeyToAddress(key.PublicKey)
		clientOpts = append(clientOpts, client.WithSigner(key, sender))
		log.Info("signer configured", "sender", sender.Hex())
	} else {
		log.Info("no signer configured, running read-only")
	}

	dialCtx, cancelDial := context.WithTimeout(context.Background(), 10*time.Second)
	ledger, err := client.Dial(dialCtx, cfg.RPC.Endpoint, contract, new(big.Int).SetUint64(cfg.RPC.ChainID), clientOpts...)
	cancelDial()
	if err != nil {
		return err
	}
	log.Info("connected to ledger", "endpoint", cfg.RPC.Endpoint, "chain_id", cfg.RPC.ChainID, "contract", contract.Hex())

	identityAddr := common.Address{}
	if trimmed := strings.TrimSpace(cfg.Identity); trimmed != "" {
		if !common.IsHexAddress(trimmed) {
			return fmt.Errorf("vaultd: malformed identity address %q", trimmed)
		}
		identityAddr = common.HexToAddress(trimmed)
	} else if sender, ok := ledger.Sender(); ok {
		identityAddr = sender
	}

	metrics := NewMetrics()
	identity := NewIdentity(identityAddr)
	coordinator := NewCoordinator(cfg.SettleDelay.Duration, metrics)
	tracker := NewTracker(ledger, cfg.PollInterval.Duration, cfg.ConfirmDepth)
	mirror := NewMirror(ledger, coordinator, identity, metrics, log)
	notifier := NewLogNotifier(log)
	controller := NewController(ledger, tracker, coordinator, notifier, metrics, WithBalanceSource(mirror))
	server := NewServer(mirror, controller, coordinator, identity, cfg.RateLimit, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go mirror.Run(ctx)
	for _, id := range cfg.Streams {
		if _, err := mirror.OpenStream(ctx, id); err != nil {
			log.Warn("open configured stream", "stream", id, "error", err)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("vaultd listening", "addr", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("vaultd stopped")
	return nil
}
