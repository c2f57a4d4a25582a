// Package main is the quanta command line client: submit circuit files to
// the Quanta execution service, follow job state, and fetch results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/entangle-io/quanta-go/internal/config"
	"github.com/entangle-io/quanta-go/internal/history"
	"github.com/entangle-io/quanta-go/pkg/logger"
	"github.com/entangle-io/quanta-go/pkg/quanta"
	"github.com/entangle-io/quanta-go/pkg/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	if err := run(ctx, cfg, log, os.Args[1], os.Args[2:]); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: quanta <command> [flags]

commands:
  submit   submit circuit files as a new job
  status   show a job's current state
  wait     wait for a job and print its results
  results  download a job's raw result bundle
  inputs   download the files a job was submitted with
  cancel   cancel a running job
  history  list recently submitted jobs`)
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, command string, args []string) error {
	switch command {
	case "submit":
		return cmdSubmit(ctx, cfg, log, args)
	case "status":
		return cmdStatus(ctx, cfg, log, args)
	case "wait":
		return cmdWait(ctx, cfg, log, args)
	case "results":
		return cmdDownload(ctx, cfg, log, args, false)
	case "inputs":
		return cmdDownload(ctx, cfg, log, args, true)
	case "cancel":
		return cmdCancel(ctx, cfg, log, args)
	case "history":
		return cmdHistory(cfg, log, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// newClient wires the transport and client from configuration. Without a
// bucket configured, artifacts are kept in a local directory, which works
// against a local development service.
func newClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*quanta.Client, error) {
	var store transport.ArtifactStore
	var err error
	if cfg.Bucket != "" {
		store, err = transport.NewS3Store(ctx, transport.S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, log)
	} else {
		store, err = transport.NewDirStore(filepath.Join(cfg.DataDir, "artifacts"))
	}
	if err != nil {
		return nil, err
	}

	channel := transport.NewClient(cfg.Endpoint, cfg.Token, store, log)

	client := quanta.NewClient(channel)
	client.SetLogger(log)
	client.SetPollInterval(time.Duration(cfg.PollSeconds) * time.Second)
	client.SetMaxTimeLimit(cfg.MaxTimeLimit)

	recorder, err := history.Open(filepath.Join(cfg.DataDir, "history.db"), log)
	if err != nil {
		log.Warn().Err(err).Msg("History store unavailable, submissions will not be recorded")
	} else {
		client.SetRecorder(recorder)
	}

	return client, nil
}

func cmdSubmit(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	algorithm := fs.String("algorithm", "auto", "backend: auto, statevector or mps")
	samples := fs.Int("samples", quanta.DefaultSamples, "number of samples")
	timeLimit := fs.Int("timelimit", quanta.DefaultTimeLimit, "wall-clock limit in minutes")
	bondDim := fs.Int("bonddim", quanta.DefaultBondDim, "MPS bond dimension")
	entDim := fs.Int("entdim", quanta.DefaultEntDim, "MPS entanglement dimension")
	forceLowEnt := fs.Bool("force-low-entdim", false, "allow entdim below the recommended minimum")
	seed := fs.Int64("seed", 0, "random seed")
	label := fs.String("label", "", "free-form job label")
	amplitudes := fs.String("amplitudes", "", "comma-separated bitstring targets")
	wait := fs.Bool("wait", false, "wait for the job and print results")
	fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("submit needs at least one circuit file")
	}

	sources := make([]quanta.CircuitSource, 0, fs.NArg())
	for _, path := range fs.Args() {
		sources = append(sources, quanta.FromFile(path))
	}

	params := quanta.NewParameters()
	params.Algorithm = quanta.Algorithm(*algorithm)
	params.Samples = *samples
	params.TimeLimit = *timeLimit
	params.BondDim = *bondDim
	params.EntDim = *entDim
	params.ForceLowEntDim = *forceLowEnt
	params.Seed = *seed
	params.Label = *label
	if *amplitudes != "" {
		params.Amplitudes = strings.Split(*amplitudes, ",")
	}

	client, err := newClient(ctx, cfg, log)
	if err != nil {
		return err
	}

	job, err := client.Submit(ctx, sources, params)
	if err != nil {
		return err
	}
	fmt.Println(job.ID)

	if *wait {
		entries, err := job.Wait(ctx)
		if err != nil {
			return err
		}
		printEntries(entries)
	}
	return nil
}

func cmdStatus(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) error {
	jobID, err := oneJobID("status", args)
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cfg, log)
	if err != nil {
		return err
	}

	status, detail, err := client.Job(jobID).Status(ctx)
	if err != nil {
		return err
	}
	if detail != "" {
		fmt.Printf("%s\t%s\n", status, detail)
	} else {
		fmt.Println(status)
	}
	return nil
}

func cmdWait(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) error {
	jobID, err := oneJobID("wait", args)
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cfg, log)
	if err != nil {
		return err
	}

	entries, err := client.Job(jobID).Wait(ctx)
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func cmdDownload(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string, inputs bool) error {
	name := "results"
	if inputs {
		name = "inputs"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	dir := fs.String("dir", ".", "destination directory")
	fs.Parse(args)

	jobID, err := oneJobID(name, fs.Args())
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cfg, log)
	if err != nil {
		return err
	}

	job := client.Job(jobID)
	var files []string
	if inputs {
		files, err = job.DownloadInputs(ctx, *dir)
	} else {
		files, err = job.DownloadResults(ctx, *dir)
	}
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Println(filepath.Join(*dir, f))
	}
	return nil
}

func cmdCancel(ctx context.Context, cfg *config.Config, log zerolog.Logger, args []string) error {
	jobID, err := oneJobID("cancel", args)
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cfg, log)
	if err != nil {
		return err
	}
	return client.Job(jobID).Cancel(ctx)
}

func cmdHistory(cfg *config.Config, log zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "number of entries to list")
	fs.Parse(args)

	store, err := history.Open(filepath.Join(cfg.DataDir, "history.db"), log)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(*limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\t%s\t%d circuit(s)\t%s\t%s\n",
			e.SubmittedAt.Format(time.RFC3339), e.JobID, e.Algorithm, e.Circuits, e.Status, e.Label)
	}
	return nil
}

func oneJobID(command string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s needs exactly one job id", command)
	}
	return args[0], nil
}

// printEntries prints a human-readable per-circuit summary.
func printEntries(entries []quanta.ResultEntry) {
	for i, entry := range entries {
		if entry.Failed() {
			fmt.Printf("circuit %d: error: %s\n", i+1, entry.Err.Message)
			continue
		}
		r := entry.Result
		fmt.Printf("circuit %d: %s %s, fidelity %.4f, %d samples\n",
			i+1, r.Simulator, r.Version, r.Fidelity, r.TotalSamples())

		outcomes := make([]string, 0, len(r.Counts))
		for outcome := range r.Counts {
			outcomes = append(outcomes, outcome)
		}
		sort.Strings(outcomes)
		for _, outcome := range outcomes {
			fmt.Printf("  %s: %d\n", outcome, r.Counts[outcome])
		}
		for j, amp := range r.Amplitudes {
			fmt.Printf("  amplitude[%d] = %.6f%+.6fi\n", j, amp.Re, amp.Im)
		}
	}
}
