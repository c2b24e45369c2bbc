package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"gatenet/internal/config"
	"gatenet/internal/stats"
	"gatenet/pkg/gatenet"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:], out)
	case "run":
		return runRun(ctx, args[1:], out)
	case "translate":
		return runTranslate(ctx, args[1:], out)
	case "dot":
		return runDOT(ctx, args[1:], out)
	case "genome":
		return runGenome(ctx, args[1:], out)
	case "fitness":
		return runFitness(ctx, args[1:], out)
	case "export":
		return runExport(ctx, args[1:], out)
	case "runs":
		return runRuns(args[1:], out)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type clientFlags struct {
	configPath *string
	storeKind  *string
	dbPath     *string
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		configPath: fs.String("config", "", "config file (.ini, .yaml, .yml or .json)"),
		storeKind:  fs.String("store", "", "store backend override: memory|sqlite"),
		dbPath:     fs.String("db-path", "", "sqlite database path override"),
	}
}

func (f clientFlags) open(ctx context.Context) (*gatenet.Client, error) {
	cfg := config.Default()
	if *f.configPath != "" {
		loaded, err := config.Load(*f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if *f.storeKind == "sqlite" && *f.dbPath == "" && cfg.Storage.Path == "" {
		cfg.Storage.Path = "gatenet.db"
	}
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return nil, err
	}
	client, err := gatenet.New(gatenet.Options{
		Config:    &cfg,
		StoreKind: *f.storeKind,
		DBPath:    *f.dbPath,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

type genomeFlags struct {
	genomeID   *string
	values     *string
	genomeFile *string
}

func addGenomeFlags(fs *flag.FlagSet) genomeFlags {
	return genomeFlags{
		genomeID:   fs.String("genome-id", "", "stored genome id"),
		values:     fs.String("values", "", "genome values separated by commas or spaces"),
		genomeFile: fs.String("genome-file", "", "file holding genome values separated by commas or whitespace"),
	}
}

func (f genomeFlags) source() (gatenet.GenomeSource, error) {
	set := 0
	for _, v := range []string{*f.genomeID, *f.values, *f.genomeFile} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return gatenet.GenomeSource{}, errors.New("use exactly one of --genome-id, --values or --genome-file")
	}
	switch {
	case *f.genomeID != "":
		return gatenet.GenomeSource{GenomeID: *f.genomeID}, nil
	case *f.values != "":
		values, err := parseValues(*f.values)
		return gatenet.GenomeSource{Values: values}, err
	default:
		data, err := os.ReadFile(*f.genomeFile)
		if err != nil {
			return gatenet.GenomeSource{}, err
		}
		values, err := parseValues(string(data))
		return gatenet.GenomeSource{Values: values}, err
	}
}

func runInit(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	fmt.Fprintf(out, "initialized store=%s\n", client.Config().Storage.Backend)
	return nil
}

func runRun(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "explicit run id (random when empty)")
	scapeName := fs.String("scape", "", "scape name: xor|echo")
	pop := fs.Int("pop", 0, "population size")
	gens := fs.Int("gens", 0, "generations")
	seed := fs.Int64("seed", 0, "rng seed")
	workers := fs.Int("workers", 0, "parallel evaluation workers")
	exportDir := fs.String("export-dir", "", "also export run artifacts under this directory")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, gatenet.RunRequest{
		RunID:       *runID,
		Scape:       *scapeName,
		Population:  *pop,
		Generations: *gens,
		Seed:        *seed,
		Workers:     *workers,
	})
	if err != nil {
		return err
	}
	if *exportDir != "" {
		if _, err := client.ExportRun(ctx, gatenet.ExportRunRequest{RunID: summary.RunID, Dir: *exportDir}); err != nil {
			return err
		}
	}
	if *jsonOut {
		return writeJSON(out, summary)
	}
	fmt.Fprintf(out, "run_id=%s best_genome=%s best_fitness=%.6f generations=%d\n",
		summary.RunID, summary.BestGenomeID, summary.BestFitness, len(summary.BestByGeneration))
	return nil
}

func runTranslate(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	cf := addClientFlags(fs)
	gf := addGenomeFlags(fs)
	jsonOut := fs.Bool("json", false, "emit the translation as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	src, err := gf.source()
	if err != nil {
		return err
	}

	client, err := cf.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	tr, err := client.Translate(ctx, src)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, tr)
	}
	for i, geom := range tr.Layers {
		fmt.Fprintf(out, "layer=%d inputs=%d outputs=%d hidden=%d\n", i, geom.Inputs, geom.Outputs, geom.Hidden)
	}
	for _, g := range tr.Gates {
		fmt.Fprintf(out, "layer=%d gate=%d kind=%s inputs=%v outputs=%v\n", g.Layer, g.Index, g.Kind, g.Inputs, g.Outputs)
	}
	fmt.Fprintf(out, "length=%d gates=%d\n", tr.Length, len(tr.Gates))
	return nil
}

func runDOT(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("dot", flag.ContinueOnError)
	cf := addClientFlags(fs)
	gf := addGenomeFlags(fs)
	layer := fs.Int("layer", 0, "layer to render for deep networks")
	reduced := fs.Bool("reduced", false, "drop gates on no input-to-output path")
	name := fs.String("name", "gatenet", "graph name")
	outPath := fs.String("out", "", "write DOT to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	src, err := gf.source()
	if err != nil {
		return err
	}

	client, err := cf.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	data, err := client.Export(ctx, gatenet.ExportRequest{
		GenomeSource: src,
		Layer:        *layer,
		Reduced:      *reduced,
		Name:         *name,
	})
	if err != nil {
		return err
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, append(data, '\n'), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", *outPath)
		return nil
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func runGenome(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("genome", flag.ContinueOnError)
	cf := addClientFlags(fs)
	id := fs.String("id", "", "genome id")
	list := fs.Bool("list", false, "list stored genomes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*id == "") == !*list {
		return errors.New("genome requires exactly one of --id or --list")
	}

	client, err := cf.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if *list {
		genomes, err := client.Genomes(ctx)
		if err != nil {
			return err
		}
		for _, g := range genomes {
			fmt.Fprintf(out, "id=%s parent=%s generation=%d length=%d\n", g.ID, g.ParentID, g.Generation, len(g.Values))
		}
		return nil
	}
	g, err := client.Genome(ctx, *id)
	if err != nil {
		return err
	}
	return writeJSON(out, g)
}

func runFitness(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("fitness requires --run-id")
	}

	client, err := cf.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, *runID)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, history)
	}
	for i, best := range history {
		fmt.Fprintf(out, "generation=%d best_fitness=%.6f\n", i+1, best)
	}
	return nil
}

func runExport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	dir := fs.String("out", "exports", "export directory")
	minImprovement := fs.Float64("min-improvement", 0, "improvement required for the benchmark summary to pass")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("export requires --run-id")
	}

	client, err := cf.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	result, err := client.ExportRun(ctx, gatenet.ExportRunRequest{RunID: *runID, Dir: *dir, MinImprovement: *minImprovement})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "exported run_id=%s to=%s improvement=%.6f passed=%t\n",
		*runID, result.RunDir, result.Summary.Improvement, result.Summary.Passed)
	return nil
}

func runRuns(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	dir := fs.String("dir", "exports", "export directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	entries, err := stats.ListRunIndex(*dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(out, "run_id=%s scape=%s population=%d generations=%d seed=%d best_fitness=%.6f created_at=%s\n",
			e.RunID, e.Scape, e.PopulationSize, e.Generations, e.Seed, e.FinalBestFitness, e.CreatedAtUTC)
	}
	return nil
}

// parseValues reads integers separated by commas and/or whitespace.
func parseValues(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return nil, errors.New("no genome values")
	}
	values := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("genome value %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: gatenetctl <init|run|translate|dot|genome|fitness|export|runs> [flags]", msg)
}
