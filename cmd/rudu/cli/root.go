// Package cli implements rudu's cobra command surface.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dundee/rudu/pkg/exclude"
	"github.com/dundee/rudu/pkg/scan"
)

var (
	flagDepth          int
	flagDepthSet       bool
	flagSort           string
	flagShowFiles      bool
	flagExclude        []string
	flagShowOwner      bool
	flagShowInodes     bool
	flagThreads        int
	flagThreadStrategy string
	flagNoCache        bool
	flagCacheTTL       int64
	flagMemoryLimitMB  uint64
	flagMemCheckMS     int
	flagOutput         string
	flagMaxIOPS        int
	flagIODelayMS      int
)

var rootCmd = &cobra.Command{
	Use:   "rudu [path]",
	Short: "rudu reports allocated disk usage per directory entry",
	Long: `rudu walks a directory tree and reports the allocated disk usage
(blocks * 512, not apparent size) of every file and directory, with an
optional incremental on-disk cache to make repeated scans of a mostly
unchanged tree fast.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

// Execute runs the root command and terminates the process with a non-zero
// exit code on a catastrophic scanner failure. Cache and owner-resolution
// failures never reach this path; the scanner absorbs them.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.Flags()
	flags.IntVar(&flagDepth, "depth", 0, "directories emitted up to depth N; files only at exact depth N")
	flags.StringVar(&flagSort, "sort", "size", "sort order: name or size")
	flags.BoolVar(&flagShowFiles, "show-files", true, "include files in output, not just directories")
	flags.StringArrayVar(&flagExclude, "exclude", nil, "exclude pattern (repeatable)")
	flags.BoolVar(&flagShowOwner, "show-owner", false, "resolve and display each directory's owner")
	flags.BoolVar(&flagShowInodes, "show-inodes", false, "display the direct-child count of each directory")
	flags.IntVar(&flagThreads, "threads", 0, "worker count for --threads-strategy fixed (0 = GOMAXPROCS)")
	flags.StringVar(&flagThreadStrategy, "threads-strategy", "default",
		"default|fixed|cpu-minus-1|io-heavy|work-stealing-uneven")
	flags.BoolVar(&flagNoCache, "no-cache", false, "disable the incremental cache entirely")
	flags.Int64Var(&flagCacheTTL, "cache-ttl", 604800, "cache lifetime in seconds, counted from when the cache file was written")
	flags.Uint64Var(&flagMemoryLimitMB, "memory-limit", 0, "memory limit in MB (0 = derive from system RAM)")
	flags.IntVar(&flagMemCheckMS, "memory-check-interval-ms", 200, "memory monitor poll interval in ms")
	flags.StringVar(&flagOutput, "output", "", "CSV destination file (absent: plain-text to terminal)")
	flags.IntVar(&flagMaxIOPS, "max-iops", 0, "maximum per-entry stat calls per second (0 = unlimited)")
	flags.IntVar(&flagIODelayMS, "io-delay-ms", 0, "fixed delay before each per-entry stat call, in ms")

	rootCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		flagDepthSet = cmd.Flags().Changed("depth")
		return nil
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	excl, err := exclude.Compile(flagExclude)
	if err != nil {
		return fmt.Errorf("invalid --exclude pattern: %w", err)
	}

	var depth *int
	if flagDepthSet {
		d := flagDepth
		depth = &d
	}

	sortMode := scan.SortBySize
	switch flagSort {
	case "name":
		sortMode = scan.SortByName
	case "size", "":
	default:
		return fmt.Errorf("invalid --sort value %q: must be name or size", flagSort)
	}

	strategy, err := parseStrategy(flagThreadStrategy)
	if err != nil {
		return err
	}

	opts := scan.Options{
		Root:                root,
		Depth:               depth,
		Sort:                sortMode,
		ShowFiles:           flagShowFiles,
		ShowOwner:           flagShowOwner,
		ShowInodes:          flagShowInodes,
		Exclude:             excl,
		Threads:             flagThreads,
		ThreadStrategy:      strategy,
		NoCache:             flagNoCache,
		CacheTTL:            flagCacheTTL,
		MemoryLimitMB:       flagMemoryLimitMB,
		MemoryCheckInterval: time.Duration(flagMemCheckMS) * time.Millisecond,
		IOPermitsPerSecond:  flagMaxIOPS,
		IODelay:             time.Duration(flagIODelayMS) * time.Millisecond,
	}

	heartbeat := newHeartbeat(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	heartbeat.Start()
	result, err := scan.Scan(opts)
	heartbeat.Stop()
	if err != nil {
		return err
	}

	if result.MemoryStatus == scan.MemoryLimitHit {
		log.Warn("rudu: memory limit reached, showing partial results")
	}

	if flagOutput != "" {
		return writeCSV(flagOutput, result)
	}
	return writePlain(os.Stdout, result, opts)
}

func parseStrategy(s string) (scan.ThreadStrategy, error) {
	switch s {
	case "default", "":
		return scan.StrategyDefault, nil
	case "fixed":
		return scan.StrategyFixed, nil
	case "cpu-minus-1":
		return scan.StrategyCpuMinus1, nil
	case "io-heavy":
		return scan.StrategyIOHeavy, nil
	case "work-stealing-uneven":
		return scan.StrategyWorkStealingUneven, nil
	default:
		return scan.StrategyDefault, fmt.Errorf("unknown --threads-strategy %q", s)
	}
}
