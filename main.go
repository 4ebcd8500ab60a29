// ChordVault is a distributed, content-addressed file backup peer built
// on a Chord overlay: each peer joins the ring, replicates files its
// owner asks it to BACKUP across a handful of successors, and serves
// RESTORE/DELETE/RECLAIM against whatever it is holding for others.
//
// Bootstrap mirrors AnshSinghSonkhia/GoVaultFS's main.go: build the
// transport, build the server, wire OnPeer/Handler, start. ChordVault
// additionally builds a persistent Store, a Ring, and a Scheduler, and
// drives everything through a Facade instead of calling FileServer
// methods directly from main.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/delgado-dev/chordvault/chord"
	"github.com/delgado-dev/chordvault/chordid"
	"github.com/delgado-dev/chordvault/config"
	"github.com/delgado-dev/chordvault/facade"
	"github.com/delgado-dev/chordvault/metrics"
	"github.com/delgado-dev/chordvault/protocol"
	"github.com/delgado-dev/chordvault/store"
	"github.com/delgado-dev/chordvault/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (optional; env CHORDVAULT_* and §6 defaults otherwise)")
	bootstrap := flag.String("bootstrap", "", "address of an existing peer to join through (empty: start a solitary ring)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *bootstrap != "" {
		cfg.BootstrapAddr = *bootstrap
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := run(cfg, sugar); err != nil {
		sugar.Fatalw("peer exited", "err", err)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	self := chord.PeerRef{
		Address: cfg.ListenAddr,
		GUID:    chordid.HashGUID(cfg.ListenAddr),
	}

	static, err := transport.GenerateStaticKeyPair()
	if err != nil {
		return fmt.Errorf("generate noise identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(cfg.StorageRoot, self.GUID.String()), 0o755); err != nil {
		return fmt.Errorf("prepare storage root: %w", err)
	}

	state, err := store.Open(filepath.Join(cfg.StorageRoot, self.GUID.String(), "state"), cfg.DefaultCapBytes)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer state.Close()

	blobs := store.NewBlobs(cfg.StorageRoot, self.GUID.String())

	rpcClient := chord.NewClient(self, static)
	ring := chord.NewRing(self, rpcClient)

	if cfg.BootstrapAddr != "" {
		bootstrapRef := chord.PeerRef{Address: cfg.BootstrapAddr, GUID: chordid.HashGUID(cfg.BootstrapAddr)}
		if err := ring.Join(bootstrapRef); err != nil {
			log.Warnw("join failed, starting solitary", "bootstrap", cfg.BootstrapAddr, "err", err)
		}
	}

	reg := metrics.New()
	reg.Capacity.Set(float64(state.Capacity()))
	reg.Occupation.Set(float64(state.Occupation()))

	protocolPool := protocol.NewPool(cfg.ProtocolPoolSize)
	clientPool := protocol.NewPool(cfg.ClientPoolSize)
	keys := chordid.NewRandKeySource(rand.New(rand.NewSource(time.Now().UnixNano())))

	engine := protocol.New(self, static, ring, state, blobs, protocolPool, keys, reg, log, protocol.Config{
		ChunkBytes:        cfg.ChunkBytes,
		BackupAckTimeout:  cfg.BackupAckTimeout,
		BackupDataTimeout: cfg.BackupDataTimeout,
		RestoreAckTimeout: cfg.RestoreAckTimeout,
	})

	listener := transport.NewListener(cfg.ListenAddr, self, static, log)
	listener.Handler = engine.HandleInbound
	if err := listener.ListenAndAccept(); err != nil {
		return fmt.Errorf("start listener: %w", err)
	}
	defer listener.Close()

	scheduler := chord.NewScheduler(ring, cfg.StabilizeMs, log)
	scheduler.Start()
	defer scheduler.Stop()

	f := facade.New(engine, ring, state, clientPool)

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", reg.Handler())
			log.Infow("metrics listening", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Warnw("metrics server stopped", "err", err)
			}
		}()
	}

	log.Infow("chordvault peer up", "addr", cfg.ListenAddr, "guid", self.GUID.String(), "bootstrap", cfg.BootstrapAddr)

	runREPL(f, log)
	return nil
}
