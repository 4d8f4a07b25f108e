package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	dirtscan "github.com/mattkeenan/dirtscan/pkg"
)

type arguments struct {
	command     string
	dir         string
	verbose     int
	debug       string
	noCacheFlag bool
}

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	if os.Args[1] == "--help" || os.Args[1] == "-h" || os.Args[1] == "help" {
		showHelp()
		return
	}

	args, err := parseArguments(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "dirtscan: %v\n", err)
		os.Exit(1)
	}

	dirtscan.SetVerboseLevel(args.verbose)
	dirtscan.SetDebugFlags(args.debug)

	switch args.command {
	case "record":
		err = runRecord(args)
	case "status":
		err = runStatus(args)
	default:
		err = fmt.Errorf("unknown command %q", args.command)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "dirtscan: %v\n", err)
		os.Exit(1)
	}
}

func parseArguments(argv []string) (*arguments, error) {
	args := &arguments{dir: "."}

	if len(argv) == 0 {
		return nil, fmt.Errorf("missing command")
	}
	args.command = argv[0]

	for i := 1; i < len(argv); i++ {
		switch argv[i] {
		case "-C":
			i++
			if i >= len(argv) {
				return nil, fmt.Errorf("-C requires a directory argument")
			}
			args.dir = argv[i]
		case "-v":
			i++
			if i >= len(argv) {
				return nil, fmt.Errorf("-v requires a level argument")
			}
			level, err := strconv.Atoi(argv[i])
			if err != nil {
				return nil, fmt.Errorf("invalid verbose level %q", argv[i])
			}
			args.verbose = level
		case "--debug":
			i++
			if i >= len(argv) {
				return nil, fmt.Errorf("--debug requires a flag list argument")
			}
			args.debug = argv[i]
		case "--no-untracked-cache":
			args.noCacheFlag = true
		default:
			if !strings.HasPrefix(argv[i], "-") && args.dir == "." {
				args.dir = argv[i]
				continue
			}
			return nil, fmt.Errorf("unknown option %q", argv[i])
		}
	}

	return args, nil
}

// repoDir searches upward from dir for a .dirt directory and returns the
// repository root containing it.
func repoDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	for d := abs; ; {
		repoPath := filepath.Join(d, dirtscan.RepoDirName)
		if info, err := os.Stat(repoPath); err == nil && info.IsDir() {
			return d, nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}

	return "", fmt.Errorf("not a dirtscan repository (or any of the parent directories): %s directory not found", dirtscan.RepoDirName)
}

func runRecord(args *arguments) error {
	root, err := filepath.Abs(args.dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", args.dir, err)
	}

	repoPath := filepath.Join(root, dirtscan.RepoDirName)
	if err := os.MkdirAll(repoPath, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", repoPath, err)
	}
	if _, err := dirtscan.LoadConfig(repoPath); err != nil {
		return err
	}

	// Write to a temp name, then rename so readers never see a torn file
	snapPath := filepath.Join(repoPath, dirtscan.SnapshotFile)
	tmpPath := fmt.Sprintf("%s.tmp-%d", snapPath, os.Getpid())
	count, err := dirtscan.RecordSnapshot(root, tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, snapPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to install snapshot: %w", err)
	}

	fmt.Printf("Recorded %d entries\n", count)
	return nil
}

func runStatus(args *arguments) error {
	root, err := repoDir(args.dir)
	if err != nil {
		return err
	}
	repoPath := filepath.Join(root, dirtscan.RepoDirName)

	cfg, err := dirtscan.LoadConfig(repoPath)
	if err != nil {
		return err
	}
	scanCfg := cfg.GetScanConfig()
	if err := scanCfg.Validate(); err != nil {
		return err
	}

	snap, err := dirtscan.OpenSnapshot(filepath.Join(repoPath, dirtscan.SnapshotFile))
	if err != nil {
		return err
	}
	defer snap.Close()

	pool := dirtscan.NewWorkerPool(scanCfg.Workers)
	defer pool.Stop()

	idx := dirtscan.NewIndex(root, snap, scanCfg.Options(pool))
	candidates, err := idx.GetDirtyCandidates(scanCfg.UntrackedCache && !args.noCacheFlag)
	if err != nil {
		return err
	}

	for _, c := range candidates {
		fmt.Println(c)
	}
	dirtscan.VerboseLog(1, "%d candidates from %d entries in %d shards",
		len(candidates), snap.EntryCount(), idx.NumShards())
	return nil
}

func showUsage() {
	fmt.Fprintf(os.Stderr, "Usage: dirtscan <record|status> [options]\n")
	fmt.Fprintf(os.Stderr, "Try 'dirtscan --help' for more information.\n")
}

func showHelp() {
	fmt.Printf("dirtscan - fast metadata-only working tree change detection\n\n")
	fmt.Printf("Usage: dirtscan <command> [options]\n\n")

	fmt.Printf("COMMANDS:\n")
	fmt.Printf("  record [DIR]      Record a metadata snapshot of the tree into .dirt/\n")
	fmt.Printf("  status [DIR]      List paths that differ from the recorded snapshot\n\n")

	fmt.Printf("OPTIONS:\n")
	fmt.Printf("  -C DIR            Operate on DIR instead of the current directory\n")
	fmt.Printf("  -v LEVEL          Verbose level (0-3)\n")
	fmt.Printf("  --debug FLAGS     Comma-separated debug flags (scan,tree)\n")
	fmt.Printf("  --no-untracked-cache\n")
	fmt.Printf("                    Disable the unchanged-directory fast path\n\n")

	fmt.Printf("STATUS OUTPUT:\n")
	fmt.Printf("  One candidate path per line, sorted. Untracked directories end\n")
	fmt.Printf("  in '/' and are not descended into.\n")
}
