package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"volume-backup/src/config"
	"volume-backup/src/logging"
	"volume-backup/src/orchestrator"
	"volume-backup/src/restic"
)

// StoreClient is everything the commands need from the snapshot store.
type StoreClient interface {
	orchestrator.Store
	Snapshots(ctx context.Context, tags []string) ([]restic.Snapshot, error)
}

type resticDetectorFunc func(ctx context.Context, binary string) (restic.BinaryInfo, error)
type storeFactoryFunc func(bin restic.BinaryInfo, opts restic.Options, logger *zap.SugaredLogger) StoreClient

var detectResticFn resticDetectorFunc = restic.Detect

var newStoreFn storeFactoryFunc = func(bin restic.BinaryInfo, opts restic.Options, logger *zap.SugaredLogger) StoreClient {
	return restic.NewStore(bin, opts, logger)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	return config.Load(path)
}

// newLogger builds the logger from the global flags. The returned closer
// flushes buffers and closes the log file; callers defer it.
func newLogger(cmd *cobra.Command, stderr io.Writer) (*zap.SugaredLogger, func(), error) {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logPath, _ := cmd.Root().PersistentFlags().GetString("log-file")

	var logFile *os.File
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		logFile = f
	}

	logger := logging.NewLogger(stderr, logFile, verbose)
	closer := func() {
		_ = logger.Sync()
		if logFile != nil {
			_ = logFile.Close()
		}
	}
	return logger, closer, nil
}

// checkResticBinary resolves the engine binary and warns when it is older
// than the supported minimum. Unattended runs proceed on a version warning;
// a missing binary is an error.
func checkResticBinary(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (restic.BinaryInfo, error) {
	info, err := detectResticFn(ctx, cfg.Restic.Binary)
	if err != nil {
		return restic.BinaryInfo{}, err
	}
	if !restic.IsCompatible(info.Version) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: restic %s detected; volume-backup requires %s or newer.\n",
			info.Version, restic.RequiredVersion)
	}
	return info, nil
}

func storeOptions(cfg *config.Config) restic.Options {
	return restic.Options{
		Env:            cfg.StoreEnv(),
		CacheDir:       cfg.Restic.CacheDir,
		UploadLimitKiB: cfg.Restic.UploadLimitKiB,
		OneFileSystem:  cfg.Restic.OneFileSystem,
		BackupTimeout:  cfg.Timeouts.Backup.Std(),
		ForgetTimeout:  cfg.Timeouts.Forget.Std(),
	}
}

// SetResticDetectorForTest allows tests to stub binary detection. The
// returned function restores the previous detector.
func SetResticDetectorForTest(fn resticDetectorFunc) func() {
	prev := detectResticFn
	detectResticFn = fn
	return func() { detectResticFn = prev }
}

// SetStoreFactoryForTest allows tests to inject a fake store client. The
// returned function restores the previous factory.
func SetStoreFactoryForTest(fn storeFactoryFunc) func() {
	prev := newStoreFn
	newStoreFn = fn
	return func() { newStoreFn = prev }
}
