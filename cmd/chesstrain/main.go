package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hailam/chesstrain/internal/dataset"
	"github.com/hailam/chesstrain/internal/nn"
	"github.com/hailam/chesstrain/internal/oracle"
	"github.com/hailam/chesstrain/internal/puzzle"
	"github.com/hailam/chesstrain/internal/storage"
	"github.com/hailam/chesstrain/internal/tablebase"
	"github.com/hailam/chesstrain/internal/trainer"
	"github.com/hailam/chesstrain/internal/uci"
)

// engineOptions collects repeated -engine-option name=value flags.
type engineOptions []string

func (o *engineOptions) String() string { return strings.Join(*o, ",") }

func (o *engineOptions) Set(s string) error {
	if !strings.Contains(s, "=") {
		return fmt.Errorf("engine option %q is not name=value", s)
	}
	*o = append(*o, s)
	return nil
}

var (
	mode        = flag.String("mode", "generate", "generate, line, consume, stats or xor")
	puzzlePath  = flag.String("puzzles", "", "puzzle corpus (.csv or .csv.zst); default in the data directory")
	datasetPath = flag.String("dataset", "", "dataset log; default in the data directory")
	netPath     = flag.String("net", "", "network file; default in the data directory")
	journalDir  = flag.String("journal", "", "run journal directory; default in the data directory")
	enginePath  = flag.String("engine", "stockfish", "UCI engine used as the oracle")
	depth       = flag.Int("depth", oracle.DefaultDepth, "oracle search depth")
	goLimits    = flag.String("go", "", "raw go limits for the oracle, overrides -depth (e.g. \"nodes 200000\")")
	themes      = flag.String("themes", "equality", "space-separated puzzle themes to draw from")
	checkpoint  = flag.Int("checkpoint", 64, "accepted samples between dataset checkpoints")
	batch       = flag.Int("batch", 64, "samples per gradient flush in line and consume modes")
	seed        = flag.Int64("seed", 0, "random seed; 0 uses the clock")
	learnRate   = flag.Float64("lr", nn.DefaultLearnRate, "learning rate")
	load        = flag.Bool("load", false, "continue from the saved network")
	useTB       = flag.Bool("tablebase", false, "label positions with few pieces from the Lichess tablebase")
	startFEN    = flag.String("fen", "", "line mode: train a single line from this position")
	maxLines    = flag.Int("max-lines", 0, "stop after this many puzzle lines; 0 runs until interrupted")
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to file")

	engineOpts engineOptions
)

func main() {
	flag.Var(&engineOpts, "engine-option", "engine option as name=value (repeatable)")
	flag.Parse()

	// Start CPU profiling if requested (via flag or environment variable)
	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
		log.Printf("CPU profiling enabled, writing to %s", profilePath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		pprof.StopCPUProfile()
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	logger := log.Default()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	if *mode == "xor" {
		logger.Printf("xor final error %.6f", nn.TrainXOR(1<<14, rng, logger))
		return nil
	}

	cfg := trainer.DefaultConfig()
	cfg.CheckpointEvery = *checkpoint
	cfg.LineBatch = *batch
	cfg.ConsumeBatch = *batch
	cfg.Themes = strings.Fields(*themes)
	cfg.MaxLines = *maxLines
	cfg.DatasetPath = *datasetPath
	if cfg.DatasetPath == "" {
		var err error
		if cfg.DatasetPath, err = storage.GetDatasetPath(); err != nil {
			return err
		}
	}

	cache := dataset.New()
	cache.SetLogger(logger)
	if err := cache.Load(cfg.DatasetPath); err != nil {
		return err
	}
	cache.Print(os.Stdout)

	journal, err := openJournal()
	if err != nil {
		logger.Printf("Warning: journal not available: %v", err)
	} else {
		defer journal.Close()
	}

	if *mode == "stats" {
		return printStats(cache, journal)
	}

	net, err := openNetwork(rng, journal, logger)
	if err != nil {
		return err
	}

	var orc oracle.Oracle
	if *mode != "consume" {
		client, err := startEngine(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		searcher := oracle.NewEngineSearcher(client, *depth)
		if *goLimits != "" {
			searcher.Limits = uci.ParseGoOptions(*goLimits)
		}
		orc = oracle.NewAdapter(searcher)
		if *useTB {
			orc = &oracle.Tablebase{
				Prober: tablebase.NewCachedLichessProber(),
				Next:   orc,
				Logger: logger,
			}
		}
	}

	t, err := trainer.New(cfg, net, cache, orc, rng, logger)
	if err != nil {
		return err
	}
	if journal != nil {
		t.OnCheckpoint = func(cp trainer.Checkpoint) {
			err := journal.RecordCheckpoint(storage.CheckpointRecord{
				Positions: cp.Positions,
				Accepted:  cp.Accepted,
				MeanEval:  cp.MeanEval,
				Time:      cp.Time,
			})
			if err != nil {
				logger.Printf("Warning: failed to record checkpoint: %v", err)
			}
		}
	}

	start := time.Now()
	switch *mode {
	case "generate":
		var corpus *puzzle.Corpus
		if corpus, err = loadPuzzles(logger); err == nil {
			err = t.Generate(ctx, corpus)
		}
	case "line":
		if *startFEN != "" {
			if err = t.SetPosition(*startFEN); err == nil {
				err = t.TrainLine(ctx)
			}
			break
		}
		var corpus *puzzle.Corpus
		if corpus, err = loadPuzzles(logger); err == nil {
			err = t.TrainLines(ctx, corpus)
		}
	case "consume":
		_, err = t.Consume(ctx)
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}
	if errors.Is(err, context.Canceled) {
		logger.Print("interrupted")
		err = nil
	}
	logger.Printf("%s done in %s, %d oracle calls", *mode, time.Since(start).Round(time.Second), t.OracleCalls())

	if serr := cache.Save(cfg.DatasetPath); serr != nil && err == nil {
		err = serr
	}
	if net.Path != "" {
		if serr := net.Save(net.Path); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

func openJournal() (*storage.Journal, error) {
	if *journalDir != "" {
		return storage.OpenJournal(*journalDir)
	}
	return storage.OpenDefaultJournal()
}

// openNetwork builds the production network, loading saved weights and the
// epoch count when asked to continue.
func openNetwork(rng *rand.Rand, journal *storage.Journal, logger *log.Logger) (*nn.Network, error) {
	net, err := nn.NewNetwork(nn.DefaultTopology, rng)
	if err != nil {
		return nil, err
	}
	net.SetLogger(logger)
	net.SetLearnRate(*learnRate)

	net.Path = *netPath
	if net.Path == "" {
		if net.Path, err = storage.GetNetworkPath(); err != nil {
			return nil, err
		}
	}
	if *load {
		if err := net.Load(net.Path); err != nil {
			return nil, err
		}
	}

	if journal == nil {
		return net, nil
	}
	if *load {
		state, err := journal.LoadRunState()
		if err != nil {
			return nil, err
		}
		net.SetEpoch(state.Epoch)
	}
	net.OnEpoch = func(s nn.EpochStats) {
		err := journal.RecordEpoch(storage.EpochRecord{
			Epoch:     s.Epoch,
			Mode:      *mode,
			Samples:   s.Samples,
			MeanError: s.MeanError,
			Time:      time.Now(),
		})
		if err != nil {
			logger.Printf("Warning: failed to record epoch: %v", err)
		}
	}
	return net, nil
}

func startEngine(ctx context.Context) (*uci.Client, error) {
	client, err := uci.Start(ctx, *enginePath)
	if err != nil {
		return nil, err
	}
	for _, opt := range engineOpts {
		name, value, _ := strings.Cut(opt, "=")
		if err := client.SetOption(ctx, name, value); err != nil {
			client.Close()
			return nil, err
		}
	}
	if err := client.NewGame(ctx); err != nil {
		client.Close()
		return nil, err
	}
	log.Printf("oracle engine: %s", client.Name)
	return client, nil
}

func loadPuzzles(logger *log.Logger) (*puzzle.Corpus, error) {
	path := *puzzlePath
	if path == "" {
		var err error
		if path, err = storage.GetPuzzlePath(); err != nil {
			return nil, err
		}
	}
	return puzzle.Load(path, logger)
}

func printStats(cache *dataset.Cache, journal *storage.Journal) error {
	if err := cache.WriteHistogram(os.Stdout, 20); err != nil {
		return err
	}
	if journal == nil {
		return nil
	}

	state, err := journal.LoadRunState()
	if err != nil {
		return err
	}
	checkpoints, err := journal.Checkpoints()
	if err != nil {
		return err
	}
	epochs, err := journal.Epochs()
	if err != nil {
		return err
	}
	fmt.Printf("%d epochs, %s samples, %d checkpoints", state.Epoch,
		humanize.Comma(state.TotalSamples), len(checkpoints))
	if !state.LastRun.IsZero() {
		fmt.Printf(", last run %s", humanize.Time(state.LastRun))
	}
	fmt.Println()
	if n := len(epochs); n > 0 {
		last := epochs[n-1]
		fmt.Printf("last epoch %d (%s): %d samples, error %g\n", last.Epoch, last.Mode, last.Samples, last.MeanError)
	}
	return nil
}
