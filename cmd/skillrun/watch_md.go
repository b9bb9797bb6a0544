package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dhwoox/Final-RAG/pkg/logger"
	"github.com/dhwoox/Final-RAG/pkg/manifest"
	"github.com/dhwoox/Final-RAG/pkg/presenter"
	"github.com/dhwoox/Final-RAG/pkg/report"
	"github.com/dhwoox/Final-RAG/pkg/skillctx"
)

// WatchMdConfig holds configuration for the watch-md command
type WatchMdConfig struct {
	IgnoreDirs   []string
	Pattern      string
	DebounceTime int
	NoHistory    bool
}

// NewWatchMdConfig creates a new WatchMdConfig with default values
func NewWatchMdConfig() *WatchMdConfig {
	return &WatchMdConfig{
		IgnoreDirs:   []string{".git", "node_modules"},
		Pattern:      manifest.DefaultPattern,
		DebounceTime: 500,
		NoHistory:    false,
	}
}

// Validate validates the WatchMdConfig and returns an error if invalid
func (c *WatchMdConfig) Validate() error {
	if c.DebounceTime < 0 {
		return errors.Errorf("debounce time cannot be negative: %d", c.DebounceTime)
	}
	if !doublestar.ValidatePattern(c.Pattern) {
		return errors.Errorf("invalid manifest pattern %q", c.Pattern)
	}
	return nil
}

// FileEvent represents a file system event with additional metadata
type FileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

var watchMdCmd = &cobra.Command{
	Use:   "watch-md <dir>",
	Short: "Re-run manifests whenever they change",
	Long: `Watch a directory and execute every manifest that is written or created
below it. Rapid successive changes to the same file trigger a single run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		config := getWatchMdConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case <-sigCh:
				presenter.Warning("Cancellation requested, shutting down...")
				cancel()
			case <-ctx.Done():
			}
		}()

		sc, err := newSkillContext()
		if err != nil {
			return err
		}
		store, err := openHistory(ctx, sc.Settings(), config.NoHistory)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		return runWatchMode(ctx, sc, store, sc.Settings().Resolve(args[0]), config)
	},
}

func init() {
	defaults := NewWatchMdConfig()
	watchMdCmd.Flags().StringSliceP("ignore", "i", defaults.IgnoreDirs, "Directories to ignore")
	watchMdCmd.Flags().String("pattern", defaults.Pattern, "Doublestar pattern selecting manifests, relative to the watched directory")
	watchMdCmd.Flags().IntP("debounce", "d", defaults.DebounceTime, "Debounce time in milliseconds for file change events")
	watchMdCmd.Flags().Bool("no-history", defaults.NoHistory, "Do not record runs in the history database")
}

// getWatchMdConfigFromFlags extracts watch-md configuration from command flags
func getWatchMdConfigFromFlags(cmd *cobra.Command) *WatchMdConfig {
	config := NewWatchMdConfig()

	if ignoreDirs, err := cmd.Flags().GetStringSlice("ignore"); err == nil {
		config.IgnoreDirs = ignoreDirs
	}
	if pattern, err := cmd.Flags().GetString("pattern"); err == nil {
		config.Pattern = pattern
	}
	if debounceTime, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.DebounceTime = debounceTime
	}
	if noHistory, err := cmd.Flags().GetBool("no-history"); err == nil {
		config.NoHistory = noHistory
	}

	return config
}

func runWatchMode(ctx context.Context, sc *skillctx.Context, store *report.Store, root string, config *WatchMdConfig) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	events := make(chan FileEvent)
	debouncedEvents := make(chan FileEvent)
	go debounceFileEvents(ctx, events, debouncedEvents, time.Duration(config.DebounceTime)*time.Millisecond)

	go func() {
		for {
			select {
			case event := <-debouncedEvents:
				logger.G(ctx).WithFields(map[string]any{
					"file":      event.Path,
					"operation": event.Op.String(),
					"timestamp": event.Time,
				}).Debug("manifest change detected")
				presenter.Info(fmt.Sprintf("Change detected: %s (%s)", event.Path, event.Op))

				run, err := runManifest(ctx, sc, event.Path, store)
				if err != nil {
					presenter.Error(err, "Failed to run manifest")
					continue
				}
				presentRun(run)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !ignored(event.Name, config.IgnoreDirs) {
						if err := watcher.Add(event.Name); err != nil {
							logger.G(ctx).WithError(err).WithField("directory", event.Name).Warn("failed to watch new directory")
						}
						continue
					}
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !matchesManifest(root, event.Name, config.Pattern) {
					continue
				}
				select {
				case events <- FileEvent{Path: event.Name, Op: event.Op, Time: time.Now()}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.G(ctx).WithError(err).Error("error watching files")
			case <-ctx.Done():
				return
			}
		}
	}()

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignored(path, config.IgnoreDirs) {
			logger.G(ctx).WithField("directory", path).Debug("skipping ignored directory")
			return filepath.SkipDir
		}
		logger.G(ctx).WithField("directory", path).Debug("adding directory to watcher")
		return watcher.Add(path)
	})
	if err != nil {
		return errors.Wrap(err, "failed to watch directories")
	}

	presenter.Info(fmt.Sprintf("Watching %s for manifest changes... Press Ctrl+C to stop", root))
	<-ctx.Done()
	return nil
}

// ignored reports whether the base name of path is one of the ignored
// directories.
func ignored(path string, ignoreDirs []string) bool {
	return slices.Contains(ignoreDirs, filepath.Base(path))
}

// matchesManifest reports whether path, relative to root, matches pattern.
func matchesManifest(root, path, pattern string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return doublestar.MatchUnvalidated(pattern, filepath.ToSlash(rel))
}

// debounceFileEvents forwards an event once no newer event for the same path
// arrived within delay.
func debounceFileEvents(ctx context.Context, input <-chan FileEvent, output chan<- FileEvent, delay time.Duration) {
	pending := make(map[string]*time.Timer)
	defer func() {
		for _, timer := range pending {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-input:
			if !ok {
				return
			}
			if timer, exists := pending[event.Path]; exists {
				timer.Stop()
			}
			eventCopy := event
			pending[event.Path] = time.AfterFunc(delay, func() {
				select {
				case output <- eventCopy:
				case <-ctx.Done():
				}
			})
		case <-ctx.Done():
			return
		}
	}
}
