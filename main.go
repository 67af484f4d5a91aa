// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"

	"github.com/uvis-qe/flatqc/internal"
	"github.com/uvis-qe/flatqc/internal/anneal"
	"github.com/uvis-qe/flatqc/internal/config"
	"github.com/uvis-qe/flatqc/internal/logging"
	"github.com/uvis-qe/flatqc/internal/qe"
)

const version = "0.3.0"

var configFile = flag.String("config", "", "YAML configuration file, defaults apply if empty")
var cpuprofile = flag.String("cpuprofile", "", "save CPU profile to `file`")
var logLevel = flag.String("log", "", "log level (debug, info, warn, error), overrides configuration")

var out = flag.String("out", "", "output file for stack, output directory for reference, epochs and detect")
var method = flag.String("method", "", "stack combination method (mean, median), overrides configuration")
var tiling = flag.String("tiling", "", "tiling mode (auto, always, never), overrides configuration")
var parallelism = flag.Int("parallelism", 0, "files and tiles processed concurrently, 0 = one per physical core")
var proposals = flag.String("proposals", "", "comma-separated proposal ids for reference flats, empty = all")

var refDir = flag.String("ref", ".", "directory holding the reference flats for detect")
var preview = flag.Bool("preview", false, "write deviation preview images in detect")
var catalogDSN = flag.String("catalog", "", "catalog data source, overrides configuration; empty disables the catalog")

var port = flag.Int("port", 0, "port for serve, overrides configuration")

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: %s [-flag value] (stack|reference|epochs|detect|stats|serve|anneal|config|help) (files)

Commands:
  stack      Combine files with the configured method into -out
  reference  Median-combine exposures into one reference flat per filter in -out
  epochs     Mean-combine exposures per filter, anneal epoch and visit date into -out
  detect     Find low-QE pixels of epoch flats against the reference flats in -ref
  stats      Show per-region statistics of the given files
  serve      Serve the results directory and catalog via HTTP
  anneal     Convert the anneal dates table (first file) into the MJD list
  config     Write the effective configuration to -out
  help       Show this help message

Flags:
`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 || args[0] == "help" {
		flag.Usage()
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logging.Init(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logging.Sync()

	logging.Printf("flatqc %s on %s with %d physical cores, %d threads per core, %d logical cores, %d MiB memory",
		version, cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.ThreadsPerCore, cpuid.CPU.LogicalCores,
		memory.TotalMemory()>>20)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			logging.Fatalf("Could not create CPU profile: %s", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			logging.Fatalf("Could not start CPU profile: %s", err)
		}
		defer pprof.StopCPUProfile()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, args[0], args[1:]); err != nil {
		logging.Errorf("%s: %s", args[0], err)
		pprof.StopCPUProfile()
		logging.Sync()
		os.Exit(1)
	}
}

// Flags override the configuration file
func applyFlags(cfg *config.Config) {
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *method != "" {
		cfg.Stack.Method = *method
	}
	if *tiling != "" {
		cfg.Stack.Tiling = *tiling
	}
	if *parallelism > 0 {
		cfg.Stack.Parallelism = *parallelism
	}
	if cfg.Stack.Parallelism == 0 {
		cfg.Stack.Parallelism = cpuid.CPU.PhysicalCores
		if cfg.Stack.Parallelism < 1 {
			cfg.Stack.Parallelism = runtime.NumCPU()
		}
	}
	if *catalogDSN != "" {
		cfg.Catalog.DSN = *catalogDSN
	}
	if *port > 0 {
		cfg.Serve.Port = *port
	}
}

func openCatalog(ctx context.Context, cfg *config.Config) (*qe.Catalog, error) {
	if cfg.Catalog.DSN == "" {
		return nil, nil
	}
	return qe.OpenCatalog(ctx, cfg.Catalog.Driver, cfg.Catalog.DSN)
}

func requireOut(cmd string) error {
	if *out == "" {
		return fmt.Errorf("%s needs -out", cmd)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, cmd string, patterns []string) error {
	fileNames, err := internal.GlobFilenameWildcards(patterns)
	if err != nil {
		return err
	}

	switch cmd {
	case "stack", "reference", "epochs":
		if err := requireOut(cmd); err != nil {
			return err
		}
		p, err := internal.NewStackParams(&cfg.Stack)
		if err != nil {
			return err
		}
		switch cmd {
		case "stack":
			return internal.CmdStack(fileNames, p, *out)
		case "reference":
			var ids []string
			if *proposals != "" {
				ids = strings.Split(*proposals, ",")
			}
			return internal.CmdReference(fileNames, p, ids, *out)
		default:
			t, err := anneal.ReadMJDList(cfg.Anneal.MJDList)
			if err != nil {
				return err
			}
			return internal.CmdEpochs(fileNames, p, t, cfg.Anneal.MinMJD, *out)
		}

	case "detect":
		if err := requireOut(cmd); err != nil {
			return err
		}
		p := internal.NewDetectParams(&cfg.Detect, cfg.Stack.ReferencePattern, *refDir, *out)
		if !*preview {
			p.PreviewRange = 0
		}
		catalog, err := openCatalog(ctx, cfg)
		if err != nil {
			return err
		}
		if catalog != nil {
			defer catalog.Close()
		}
		return internal.CmdDetect(ctx, fileNames, p, catalog)

	case "stats":
		internal.CmdStats(fileNames, internal.Regions(cfg.Stack.Regions), cfg.Stack.Parallelism)
		return nil

	case "serve":
		catalog, err := openCatalog(ctx, cfg)
		if err != nil {
			return err
		}
		if catalog != nil {
			defer catalog.Close()
		}
		return internal.CmdServe(cfg.Serve.Port, cfg.Serve.ResultsDir, catalog)

	case "anneal":
		table := cfg.Anneal.Table
		if len(patterns) > 0 {
			table = patterns[0]
		}
		if table == "" {
			return fmt.Errorf("anneal needs a dates table, as argument or anneal.table")
		}
		return internal.CmdAnneal(table, cfg.Anneal.MJDList)

	case "config":
		if err := requireOut(cmd); err != nil {
			return err
		}
		logging.Printf("Writing configuration to %s", *out)
		return config.Save(cfg, *out)
	}
	return fmt.Errorf("unknown command %q", cmd)
}
