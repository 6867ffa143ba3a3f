// Package main is the entry point for fieldmark-codes, the offline code
// minting, label rendering, and registry snapshot tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/fieldmark/fieldmark/internal/code"
	"github.com/fieldmark/fieldmark/internal/config"
	"github.com/fieldmark/fieldmark/internal/export"
	"github.com/fieldmark/fieldmark/internal/labels"
	"github.com/fieldmark/fieldmark/internal/registry"
)

const usage = "Usage: fieldmark-codes <mint|batch|regenerate|render|export|import> [flags]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	var rc int
	switch os.Args[1] {
	case "mint":
		rc = runMint(os.Args[2:])
	case "batch":
		rc = runBatch(os.Args[2:])
	case "regenerate":
		rc = runRegenerate(os.Args[2:])
	case "render":
		rc = runRender(os.Args[2:])
	case "export":
		rc = runExport(os.Args[2:])
	case "import":
		rc = runImport(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n%s\n", os.Args[1], usage)
		rc = 1
	}
	os.Exit(rc)
}

// openStore loads the configuration and opens the registry backend.
func openStore(configPath string) (*config.Config, registry.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	store, err := registry.NewStore(context.Background(), &cfg.Registry)
	if err != nil {
		return nil, nil, fmt.Errorf("opening registry: %w", err)
	}
	return cfg, store, nil
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func runMint(args []string) int {
	fs := flag.NewFlagSet("mint", flag.ExitOnError)
	configPath := fs.String("config", "fieldmark.yaml", "Config file path")
	prefix := fs.String("prefix", "", "Code prefix (default: from config)")
	fs.Parse(args)

	cfg, store, err := openStore(*configPath)
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	p := *prefix
	if p == "" {
		p = cfg.Codes.DefaultPrefix
	}
	minter := code.NewMinter(store, cfg.Codes.MaxAttempts, cfg.Codes.MaxBatch)
	minted, err := minter.Mint(context.Background(), p)
	if err != nil {
		return fail(err)
	}
	fmt.Println(minted)
	return 0
}

func runBatch(args []string) int {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	configPath := fs.String("config", "fieldmark.yaml", "Config file path")
	prefix := fs.String("prefix", "", "Code prefix (default: from config)")
	count := fs.Int("count", 10, "Number of codes to mint")
	fs.Parse(args)

	cfg, store, err := openStore(*configPath)
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	p := *prefix
	if p == "" {
		p = cfg.Codes.DefaultPrefix
	}
	minter := code.NewMinter(store, cfg.Codes.MaxAttempts, cfg.Codes.MaxBatch)
	codes, err := minter.MintBatch(context.Background(), p, *count)
	if err != nil {
		return fail(err)
	}
	for _, c := range codes {
		fmt.Println(c)
	}
	return 0
}

func runRegenerate(args []string) int {
	fs := flag.NewFlagSet("regenerate", flag.ExitOnError)
	configPath := fs.String("config", "fieldmark.yaml", "Config file path")
	location := fs.String("location", "", "Location ID to rebind")
	prefix := fs.String("prefix", "", "Code prefix (default: from config)")
	fs.Parse(args)

	if *location == "" {
		fmt.Fprintln(os.Stderr, "Error: -location is required")
		return 1
	}

	cfg, store, err := openStore(*configPath)
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	p := *prefix
	if p == "" {
		p = cfg.Codes.DefaultPrefix
	}
	minter := code.NewMinter(store, cfg.Codes.MaxAttempts, cfg.Codes.MaxBatch)
	minted, err := minter.Regenerate(context.Background(), store, *location, p)
	if err != nil {
		return fail(err)
	}
	fmt.Println(minted)
	return 0
}

func runRender(args []string) int {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	codeVal := fs.String("code", "", "Location code to render")
	size := fs.Int("size", labels.DefaultSize, "Label edge length in pixels")
	output := fs.String("output", "", "Output PNG path (default: <code>.png)")
	fs.Parse(args)

	if !code.Valid(*codeVal) {
		fmt.Fprintf(os.Stderr, "Error: %q is not a valid location code\n", *codeVal)
		return 1
	}

	png, err := labels.Render(*codeVal, *size)
	if err != nil {
		return fail(err)
	}
	out := *output
	if out == "" {
		out = *codeVal + ".png"
	}
	if err := os.WriteFile(out, png, 0o644); err != nil {
		return fail(err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", out)
	return 0
}

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "fieldmark.yaml", "Config file path")
	output := fs.String("output", "-", "Output file path (- for stdout)")
	fs.Parse(args)

	_, store, err := openStore(*configPath)
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	data, err := export.Export(context.Background(), store)
	if err != nil {
		return fail(err)
	}
	if *output == "-" {
		fmt.Println(string(data))
		return 0
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		return fail(err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", *output)
	return 0
}

func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "fieldmark.yaml", "Config file path")
	input := fs.String("input", "", "Snapshot file to import")
	fs.Parse(args)

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required")
		return 1
	}
	data, err := os.ReadFile(*input)
	if err != nil {
		return fail(err)
	}

	_, store, err := openStore(*configPath)
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	res, err := export.Import(context.Background(), store, data)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(os.Stderr, "Imported %d locations (%d skipped), %d retired codes\n",
		res.Locations, res.Skipped, res.Retired)
	return 0
}
