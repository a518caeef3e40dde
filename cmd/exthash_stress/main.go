package main

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"exthash/pkg/cli"
	"exthash/pkg/database"
	"exthash/pkg/record"
	"exthash/pkg/repl"
)

var MAX_DELAY int64 = 10

type options struct {
	workload string
	index    string
	random   int
	keys     int64
	threads  int
	jitter   bool
	verify   bool
	keep     bool
}

var rootCmd = cli.Init("exthash_stress", "Replay a workload against an index and verify it")

// Get delay jitter.
func jitter() time.Duration {
	return time.Duration(rand.Int63n(MAX_DELAY)+1) * time.Millisecond
}

// Parse workload
func parseWorkload(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var workload []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			workload = append(workload, line)
		}
	}
	return workload, scanner.Err()
}

// randomWorkload generates n add/delete lines over keys in [0, keys).
func randomWorkload(rng *rand.Rand, n int, keys int64) []string {
	workload := make([]string, 0, n)
	for i := 0; i < n; i++ {
		k := rng.Int63n(keys)
		if rng.Intn(4) == 0 {
			workload = append(workload, fmt.Sprintf("delete %d", k))
		} else {
			workload = append(workload, fmt.Sprintf("add %d %d", k, rng.Int63()))
		}
	}
	return workload
}

// toCommand expands a workload line into a REPL command on index.
func toCommand(line, index string) (string, error) {
	fields := strings.Fields(line)
	switch {
	case len(fields) == 3 && fields[0] == "add":
		return fmt.Sprintf("add %s %s into %s", fields[1], fields[2], index), nil
	case len(fields) == 2 && fields[0] == "delete":
		return fmt.Sprintf("delete %s from %s", fields[1], index), nil
	default:
		return "", errors.Errorf("bad workload line %q", line)
	}
}

// model replays a workload sequentially.
func model(workload []string) (map[int64]int64, error) {
	m := make(map[int64]int64)
	for _, line := range workload {
		fields := strings.Fields(line)
		k, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, err
		}
		if fields[0] == "delete" {
			delete(m, k)
			continue
		}
		v, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// Handle workload
func handleWorkload(ctx context.Context, r *repl.REPL, commands []string, idx, n int, jitterOn bool) error {
	replConfig := &repl.REPLConfig{}
	for i := idx; i < len(commands); i += n {
		if err := ctx.Err(); err != nil {
			return err
		}
		if jitterOn {
			time.Sleep(jitter())
		}
		out := r.Execute(commands[i], replConfig)
		// Deleting an absent key is expected in random workloads.
		if strings.HasPrefix(out, repl.ErrorPrependStr) && !strings.Contains(out, "no record with key") {
			return errors.Errorf("%s: %s", commands[i], strings.TrimSpace(out))
		}
	}
	return nil
}

func verify(index *database.Index, workload []string, sequential bool) error {
	if err := index.Check(); err != nil {
		return err
	}
	count, err := index.Count()
	if err != nil {
		return err
	}
	if count != index.Size() {
		return errors.Errorf("size %d, buckets hold %d records", index.Size(), count)
	}
	if !sequential {
		return nil
	}
	want, err := model(workload)
	if err != nil {
		return err
	}
	if int64(len(want)) != index.Size() {
		return errors.Errorf("size %d, expected %d", index.Size(), len(want))
	}
	var errs error
	for k, v := range want {
		r, found, err := index.Find(record.FromInt64(k, 0))
		if err != nil {
			return err
		}
		if !found {
			errs = multierr.Append(errs, errors.Errorf("key %d missing", k))
			continue
		}
		if _, got := record.ToInt64(r); got != v {
			errs = multierr.Append(errs, errors.Errorf("key %d: value %d, expected %d", k, got, v))
		}
	}
	return errs
}

func run(ctx context.Context, opts options) (err error) {
	cfg, err := rootCmd.Config()
	if err != nil {
		return err
	}
	log, err := cli.Logger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	runID := uuid.New()
	log = log.With(zap.Stringer("run", runID))
	rng := rand.New(rand.NewSource(int64(runID.ID())))

	var workload []string
	switch {
	case opts.workload != "":
		if workload, err = parseWorkload(opts.workload); err != nil {
			return errors.Wrap(err, "read workload")
		}
	case opts.random > 0:
		workload = randomWorkload(rng, opts.random, opts.keys)
	default:
		return errors.New("no workload given: use --workload or --random")
	}
	commands := make([]string, len(workload))
	for i, line := range workload {
		if commands[i], err = toCommand(line, opts.index); err != nil {
			return err
		}
	}

	folder := filepath.Join(cfg.DataDir, "stress-"+runID.String())
	db, err := database.Open(folder, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, db.Close())
		if !opts.keep {
			_ = os.RemoveAll(folder)
		}
	}()
	index, err := db.CreateIndex(opts.index)
	if err != nil {
		return err
	}

	r := database.DatabaseRepl(db)
	start := time.Now()
	eg, egCtx := errgroup.WithContext(ctx)
	for i := 0; i < opts.threads; i++ {
		eg.Go(func() error {
			return handleWorkload(egCtx, r, commands, i, opts.threads, opts.jitter)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	log.Info("workload done",
		zap.Int("ops", len(commands)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int64("size", index.Size()),
		zap.Int("bitLen", index.BitLen()))

	if !opts.verify {
		return nil
	}
	if err := verify(index, workload, opts.threads == 1); err != nil {
		return errors.Wrap(err, "verify")
	}
	fmt.Println("verified: ok")
	return nil
}

func main() {
	var opts options
	rootCmd.Flags().StringVarP(&opts.workload, "workload", "w", "", "Workload file of 'add <key> <value>' and 'delete <key>' lines")
	rootCmd.Flags().StringVar(&opts.index, "index", "t", "Name of the index to create")
	rootCmd.Flags().IntVar(&opts.random, "random", 0, "Generate a random workload of this many operations instead")
	rootCmd.Flags().Int64Var(&opts.keys, "keys", 10000, "Key space of a random workload")
	rootCmd.Flags().IntVarP(&opts.threads, "threads", "n", 1, "Number of threads to run")
	rootCmd.Flags().BoolVar(&opts.jitter, "jitter", false, "Sleep a random delay before each operation")
	rootCmd.Flags().BoolVar(&opts.verify, "verify", false, "Verify the index state at the end of the workload")
	rootCmd.Flags().BoolVar(&opts.keep, "keep", false, "Keep the data folder of the run")
	rootCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if opts.threads < 1 {
			return errors.New("threads must be at least 1")
		}
		if opts.keys < 1 {
			return errors.New("keys must be at least 1")
		}
		return run(cmd.Context(), opts)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	rootCmd.MustExecute(ctx)
}
