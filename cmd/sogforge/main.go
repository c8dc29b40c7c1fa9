// Package main implements the sogforge command-line scene converter.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sogforge/sogforge/internal/cli"
	"github.com/sogforge/sogforge/internal/config"
	"github.com/sogforge/sogforge/internal/driver"
	sferrors "github.com/sogforge/sogforge/internal/errors"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	args := os.Args[1:]

	if len(args) == 1 && (args[0] == "--version" || args[0] == "-version") {
		fmt.Printf("sogforge version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}
	if len(args) == 1 && (args[0] == "--help" || args[0] == "-help" || args[0] == "-h") {
		printUsage()
		os.Exit(0)
	}

	if err := config.LoadDotEnv(""); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}
	cfg := config.DefaultConfig()
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	parsed, err := cli.Parse(args, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		os.Exit(1)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	d := driver.New(logger, parsed.Global.Quiet)

	if err := d.Run(parsed); err != nil {
		logger.Printf("%v", err)
		os.Exit(sferrors.ExitCode(err))
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "sogforge - 3D Gaussian Splatting scene converter\n\n")
	fmt.Fprintf(os.Stderr, "Usage: sogforge [global flags] input [actions] [...input [actions]] output [actions]\n\n")
	fmt.Fprintf(os.Stderr, "Global flags:\n")
	fmt.Fprintf(os.Stderr, "  --overwrite, --quiet, --iterations N, --gpu {N|cpu|auto}, --list-gpus,\n")
	fmt.Fprintf(os.Stderr, "  --viewer-settings PATH, --unbundled, --lod-select L,..., --lod-chunk-count N,\n")
	fmt.Fprintf(os.Stderr, "  --lod-chunk-extent N\n\n")
	fmt.Fprintf(os.Stderr, "Action flags (attach to the preceding path):\n")
	fmt.Fprintf(os.Stderr, "  -t x,y,z  -r x,y,z  -s f  -H n  -N  -B x,y,z,X,Y,Z  -S x,y,z,r\n")
	fmt.Fprintf(os.Stderr, "  -V name,cmp,value  -p k=v[,k=v...]  -l n\n\n")
	fmt.Fprintf(os.Stderr, "Environment variables:\n")
	fmt.Fprintf(os.Stderr, "  SOGFORGE_ITERATIONS, SOGFORGE_LOD_CHUNK_COUNT, SOGFORGE_LOD_CHUNK_EXTENT,\n")
	fmt.Fprintf(os.Stderr, "  SOGFORGE_GPU\n")
}
