package appupdate

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/atinylittleshell/clipminder/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockUpdater struct {
	mock.Mock
}

func (m *MockUpdater) DetectLatest(ctx context.Context, repo string) (Release, bool, error) {
	args := m.Called(ctx, repo)
	release, _ := args.Get(0).(Release)
	return release, args.Bool(1), args.Error(2)
}

type MockRelease struct {
	mock.Mock
}

func (m *MockRelease) Version() string {
	return m.Called().String(0)
}

func useTempDataDir(t *testing.T) {
	t.Setenv("CLIPMINDER_HOME", t.TempDir())
	core.ResetPaths()
	t.Cleanup(core.ResetPaths)
}

func TestHandleUpdateCheck_NewerVersion(t *testing.T) {
	useTempDataDir(t)
	mockUpdater := new(MockUpdater)
	mockRelease := new(MockRelease)

	mockRelease.On("Version").Return("1.2.0")
	mockUpdater.On("DetectLatest", mock.Anything, Repository).Return(mockRelease, true, nil)

	remoteVersion, ok := <-HandleUpdateCheck("1.0.0", zap.NewNop(), mockUpdater)

	assert.True(t, ok)
	assert.Equal(t, "1.2.0", remoteVersion)
	assert.Equal(t, "1.2.0", ReadLatestVersion())

	upgrade, pending := PendingUpgrade("1.0.0")
	assert.True(t, pending)
	assert.Equal(t, "1.2.0", upgrade)

	mockRelease.AssertExpectations(t)
	mockUpdater.AssertExpectations(t)
}

func TestHandleUpdateCheck_AlreadyLatest(t *testing.T) {
	useTempDataDir(t)
	mockUpdater := new(MockUpdater)
	mockRelease := new(MockRelease)

	mockRelease.On("Version").Return("1.2.4")
	mockUpdater.On("DetectLatest", mock.Anything, Repository).Return(mockRelease, true, nil)

	_, ok := <-HandleUpdateCheck("2.0.0", zap.NewNop(), mockUpdater)

	assert.False(t, ok)
	assert.Equal(t, "", ReadLatestVersion())
	mockUpdater.AssertExpectations(t)
}

func TestHandleUpdateCheck_RemoteError(t *testing.T) {
	useTempDataDir(t)
	mockUpdater := new(MockUpdater)
	mockUpdater.On("DetectLatest", mock.Anything, Repository).Return(nil, false, errors.New("rate limited"))

	_, ok := <-HandleUpdateCheck("1.0.0", zap.NewNop(), mockUpdater)

	assert.False(t, ok)
	mockUpdater.AssertExpectations(t)
}

func TestHandleUpdateCheck_DevBuild(t *testing.T) {
	mockUpdater := new(MockUpdater)

	_, ok := <-HandleUpdateCheck("dev", zap.NewNop(), mockUpdater)

	assert.False(t, ok)
	mockUpdater.AssertNotCalled(t, "DetectLatest", mock.Anything, mock.Anything)
}

func TestPendingUpgrade_IgnoresOlderRecord(t *testing.T) {
	useTempDataDir(t)
	require.NoError(t, os.WriteFile(core.LatestVersionFile(), []byte("0.9.0\n"), 0644))

	_, pending := PendingUpgrade("1.0.0")
	assert.False(t, pending)

	_, pending = PendingUpgrade("dev")
	assert.False(t, pending)
}
