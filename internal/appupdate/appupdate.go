package appupdate

import (
	"context"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/atinylittleshell/clipminder/internal/core"
	"github.com/creativeprojects/go-selfupdate"
	"go.uber.org/zap"
)

const Repository = "atinylittleshell/clipminder"

type Release interface {
	Version() string
}

type Updater interface {
	DetectLatest(ctx context.Context, repo string) (Release, bool, error)
}

// DefaultUpdater looks releases up on GitHub.
type DefaultUpdater struct{}

func (DefaultUpdater) DetectLatest(ctx context.Context, repo string) (Release, bool, error) {
	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repo))
	if err != nil || !found {
		return nil, found, err
	}
	return latest, true, nil
}

// HandleUpdateCheck looks for a newer release in the background. The returned
// channel yields the newer version, if any, and is then closed. Dev builds
// skip the check.
func HandleUpdateCheck(currentVersion string, logger *zap.Logger, updater Updater) chan string {
	resultChannel := make(chan string, 1)

	currentSemVer, err := semver.NewVersion(currentVersion)
	if err != nil {
		logger.Debug("running a dev build, skipping update check")
		close(resultChannel)
		return resultChannel
	}

	go fetchAndSaveLatestVersion(resultChannel, logger, updater, currentSemVer)

	return resultChannel
}

// ReadLatestVersion returns the newer version recorded by a previous check.
func ReadLatestVersion() string {
	content, err := os.ReadFile(core.LatestVersionFile())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}

// PendingUpgrade reports a recorded version newer than currentVersion.
func PendingUpgrade(currentVersion string) (string, bool) {
	current, err := semver.NewVersion(currentVersion)
	if err != nil {
		return "", false
	}
	recorded := ReadLatestVersion()
	latest, err := semver.NewVersion(recorded)
	if err != nil || !latest.GreaterThan(current) {
		return "", false
	}
	return recorded, true
}

func fetchAndSaveLatestVersion(resultChannel chan string, logger *zap.Logger, updater Updater, currentSemVer *semver.Version) {
	defer close(resultChannel)

	latest, found, err := updater.DetectLatest(context.Background(), Repository)
	if err != nil {
		logger.Warn("error occurred while getting latest version from remote", zap.Error(err))
		return
	}
	if !found {
		logger.Warn("latest version could not be found")
		return
	}

	latestSemVer, err := semver.NewVersion(latest.Version())
	if err != nil {
		logger.Error("failed to parse latest version", zap.Error(err))
		return
	}

	if latestSemVer.LessThanEqual(currentSemVer) {
		logger.Debug("already running the latest version")
		return
	}

	if err := os.WriteFile(core.LatestVersionFile(), []byte(latest.Version()), 0644); err != nil {
		logger.Error("failed to save latest version", zap.Error(err))
		return
	}

	logger.Info("new version available", zap.String("current", currentSemVer.String()), zap.String("latest", latest.Version()))
	resultChannel <- latest.Version()
}
