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
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sl "github.com/mlnoga/spotlight/internal"
	"github.com/mlnoga/spotlight/internal/config"
	"github.com/mlnoga/spotlight/internal/ops"
	"github.com/mlnoga/spotlight/internal/pass"
	"github.com/mlnoga/spotlight/internal/rest"
	"github.com/mlnoga/spotlight/internal/stats"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var conf = flag.String("config", "", "load settings from YAML `file`, flags override them")
var log = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of the spots file with .log")
var spots = flag.String("spots", "spots%d.csv", "save spots with given filename pattern, .csv or .json, e.g. `spots%04d.csv`")
var preview = flag.String("preview", "", "save preview with marked spots with given filename pattern, .jpg, .png or .tif, e.g. `preview%04d.jpg`")
var gamma = flag.Float64("gamma", 1, "apply preview gamma, 1: keep linear light data")

var threshold = flag.Float64("threshold", 64.3/255, "intensity threshold for labeling, in [0,1]")
var autoSigma = flag.Float64("autoSigma", 0, "if >0, set threshold this many background scales above the background location")
var lsEst = flag.Int64("lsEst", 1, "location and scale estimator for autoSigma: 0=mean/stddev, 1=sampled median/MAD, 2=histogram peak")
var median = flag.Bool("median", false, "apply 3x3 median filter before labeling")
var extraIter = flag.Int64("extraIter", 10, "merge and consolidation passes beyond bitlen(height)")

var fill = flag.Int64("fill", 2, "fill passes per quadrant")
var window = flag.Int64("window", 4, "doubling window passes per quadrant and measure")
var offset = flag.Int64("offset", 10, "result table slot width, i.e. maximum spots per table row")
var minArea = flag.Int64("minArea", 3, "smallest reported spot area in pixels")

var sortSpots = flag.Bool("sort", false, "sort spots by descending luminance")
var maxSpots = flag.Int64("maxSpots", 0, "keep only the given number of brightest spots, 0=all")

var labels = flag.String("labels", "", "save false color labels with given filename pattern, .png or .tif, e.g. `labels%04d.png`")
var palette = flag.String("palette", "hcl", "false color palette, hcl or hash")
var dump = flag.Bool("dump", false, "print label and table grids to the log")
var timings = flag.Bool("timings", false, "print per-program execution statistics")

var threads = flag.Int64("threads", 0, "number of concurrent row bands per pass, 0=all cores")
var memoryMB = flag.Int64("memory", 0, "MiB of memory to use for grids, 0=70% of physical memory")

var count = flag.Int64("count", 1, "number of synthetic frames")
var seed = flag.Int64("seed", 1, "random seed of the first synthetic frame")
var width = flag.Int64("width", 256, "width of synthetic frames")
var height = flag.Int64("height", 256, "height of synthetic frames")
var stars = flag.Int64("stars", 40, "stars per synthetic frame")
var hotPixels = flag.Int64("hotPixels", 10, "hot pixels per synthetic frame")

var addr = flag.String("addr", "localhost:8080", "listen on this address for serve")
var chroot = flag.String("chroot", "", "chroot to this directory for serve")
var setuid = flag.Int64("setuid", 0, "setuid to this user ID after chroot for serve, 0=keep")

func main() {
	logWriter := sl.LogWriter()
	debug.SetGCPercent(10)
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(os.Stdout, `Spotlight Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (extract|synth|serve|config|legal|version) (img0.fits ... imgn.fits)

Commands:
  extract Extract spots from input images
  synth   Generate synthetic star fields and extract spots from them
  serve   Serve the REST API and web interface
  config  Print the effective settings as YAML
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	// Initialize logging to file in addition to stdout, if selected
	if *log == "%auto" {
		if (args[0] == "extract" || args[0] == "synth") && *spots != "" {
			*log = strings.TrimSuffix(strings.ReplaceAll(*spots, "%d", ""), filepath.Ext(*spots)) + ".log"
		} else {
			*log = ""
		}
	}
	if *log != "" {
		if err := sl.LogAlsoToFile(*log); err != nil {
			sl.LogFatalf("Unable to open logfile '%s'\n", *log)
		}
	}
	defer sl.LogSync()

	cfg, err := config.LoadConfig(*conf)
	if err != nil {
		sl.LogFatalf("Error loading config: %s\n", err.Error())
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		sl.LogFatalf("Invalid settings: %s\n", err.Error())
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			sl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			sl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	exec := pass.NewCPU(cfg.Exec.Threads, cfg.Exec.MemoryMB)

	switch args[0] {
	case "extract":
		fmt.Fprintln(logWriter, exec.Describe())
		err = cmdExtract(args[1:], cfg, exec)

	case "synth":
		fmt.Fprintln(logWriter, exec.Describe())
		err = cmdSynth(cfg, exec)

	case "serve":
		fmt.Fprintln(logWriter, exec.Describe())
		if err = rest.MakeSandbox(cfg.Serve.Chroot, cfg.Serve.Setuid, logWriter); err == nil {
			err = rest.NewServer(cfg, exec, logWriter).Serve()
		}

	case "config":
		var m []byte
		if m, err = yaml.Marshal(cfg); err == nil {
			fmt.Fprintf(logWriter, "%s", m)
		}

	case "legal":
		cmdLegal()

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	if err != nil {
		sl.LogFatalf("Error: %s\n", err.Error())
	}
	if *timings && (args[0] == "extract" || args[0] == "synth") {
		exec.PrintTimings(logWriter)
	}

	// Print elapsed time
	elapsed := time.Since(start)
	fmt.Fprintf(logWriter, "\nDone after %v\n", elapsed)

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			sl.LogFatal("Could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			sl.LogFatal("Could not write memory profile: ", err)
		}
	}
}

// Applies explicitly set flags on top of the loaded configuration
func applyFlags(cfg *config.Config) {
	p := &cfg.Pipeline
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "threshold":
			p.Label.Threshold = float32(*threshold)
		case "extraIter":
			p.Label.ExtraIterations = int(*extraIter)
		case "autoSigma":
			p.AutoSigma = float32(*autoSigma)
		case "lsEst":
			p.Estimator = stats.LSEstimatorMode(*lsEst)
		case "median":
			p.Median = *median
		case "fill":
			p.Stats.FillIterations = int(*fill)
		case "window":
			p.Stats.WindowPasses = int(*window)
		case "offset":
			p.Stats.Offset = int(*offset)
		case "minArea":
			p.Stats.MinArea = int(*minArea)
		case "labels":
			p.LabelImage = *labels
		case "palette":
			p.Palette = *palette
		case "dump":
			p.DumpGrids = *dump
		case "threads":
			cfg.Exec.Threads = int(*threads)
		case "memory":
			cfg.Exec.MemoryMB = *memoryMB
		case "seed":
			cfg.Synth.Seed = uint32(*seed)
		case "width":
			cfg.Synth.Width = int(*width)
		case "height":
			cfg.Synth.Height = int(*height)
		case "stars":
			cfg.Synth.Stars = int(*stars)
		case "hotPixels":
			cfg.Synth.HotPixels = int(*hotPixels)
		case "addr":
			cfg.Serve.Addr = *addr
		case "chroot":
			cfg.Serve.Chroot = *chroot
		case "setuid":
			cfg.Serve.Setuid = int(*setuid)
		}
	})
}

// Builds the per image steps after loading or generating
func perImageSteps(cfg *config.Config) []ops.Operator {
	opExtract := ops.NewOpExtract(cfg.Pipeline)
	opExtract.SortByLuminance = *sortSpots
	opExtract.MaxSpots = int(*maxSpots)
	opSave := ops.NewOpSave(*preview)
	opSave.Gamma = float32(*gamma)
	return []ops.Operator{opExtract, ops.NewOpSaveSpots(*spots), opSave}
}

func run(seq *ops.OpSequence, cfg *config.Config, exec pass.Executor) error {
	c := ops.NewContext(sl.LogWriter(), exec)
	if cfg.Exec.Threads > 0 {
		c.MaxThreads = cfg.Exec.Threads
	}
	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

func cmdExtract(args []string, cfg *config.Config, exec pass.Executor) error {
	if len(args) == 0 {
		return fmt.Errorf("no input files")
	}
	seq := ops.NewOpSequence(ops.NewOpLoadMany(args))
	seq.Append(perImageSteps(cfg)...)
	return run(seq, cfg, exec)
}

func cmdSynth(cfg *config.Config, exec pass.Executor) error {
	seq := ops.NewOpSequence(ops.NewOpSynth(int(*count), cfg.Synth))
	seq.Append(perImageSteps(cfg)...)
	return run(seq, cfg, exec)
}
