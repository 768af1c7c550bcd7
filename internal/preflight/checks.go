package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"

	"scribe/internal/config"
	"scribe/internal/taskstore"
)

// Result is one named check outcome.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the scratch filesystem has at least minBytes
// available for media downloads and intermediate audio.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (only %d MiB free, need %d MiB)", path, free>>20, minBytes>>20)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d MiB free)", path, free>>20)}
}

// CheckStore verifies the task store answers a ping.
func CheckStore(ctx context.Context, store taskstore.Store) Result {
	const name = "Task store"
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := store.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckSystemDeps evaluates the external binaries the pipeline shells out
// to. Both the daemon and the CLI health command use this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []BinaryStatus {
	requirements := []BinaryRequirement{
		{
			Name:    "yt-dlp",
			Command: cfg.YtdlpBinary(),
			Purpose: "Required for media downloads",
		},
		{
			Name:    "FFmpeg",
			Command: cfg.FFmpegBinary(),
			Purpose: "Required for audio extraction",
		},
		{
			Name:    "FFprobe",
			Command: cfg.FFprobeBinary(),
			Purpose: "Required for media validation",
		},
		{
			Name:    "uvx",
			Command: "uvx",
			Purpose: "Required for WhisperX transcription",
		},
	}
	if cfg.Browser.Enabled {
		requirements = append(requirements, BinaryRequirement{
			Name:     "Chrome",
			Command:  chromeBinary(),
			Purpose:  "Enables browser-based media retrieval",
			Optional: true,
		})
	}
	return CheckBinaries(requirements)
}

// Run executes every startup check and returns the failures.
func Run(ctx context.Context, cfg *config.Config, store taskstore.Store) []Result {
	var failures []Result

	collect := func(result Result) {
		if !result.Passed {
			failures = append(failures, result)
		}
	}

	collect(CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir))
	collect(CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	collect(CheckFreeSpace("Scratch free space", cfg.Paths.ScratchDir, 1<<30))
	collect(CheckStore(ctx, store))

	for _, status := range CheckSystemDeps(ctx, cfg) {
		if !status.Available && !status.Optional {
			failures = append(failures, Result{
				Name:   status.Name,
				Detail: status.Detail,
			})
		}
	}
	return failures
}

func chromeBinary() string {
	for _, candidate := range []string{"google-chrome", "chromium", "chromium-browser"} {
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate
		}
	}
	return "google-chrome"
}
