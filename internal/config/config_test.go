package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/careorg/rosteraccess/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolderSwapBumpsVersion(t *testing.T) {
	h, err := NewHolder(models.DefaultRBACConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, h.Current().Version)

	next := models.DefaultRBACConfig()
	next.RequireClockIn = true
	require.NoError(t, h.Swap(next))

	got := h.Current()
	assert.Equal(t, 2, got.Version)
	assert.True(t, got.RequireClockIn)
}

func TestHolderRejectsInvalidSwap(t *testing.T) {
	h, err := NewHolder(models.DefaultRBACConfig())
	require.NoError(t, err)

	bad := models.DefaultRBACConfig()
	bad.EarlyFinishGracePeriodMinutes = -1
	err = h.Swap(bad)
	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)

	// The previous config stays active.
	assert.Equal(t, 1, h.Current().Version)
	assert.Equal(t, 15, h.Current().EarlyFinishGracePeriodMinutes)
}

func TestNewHolderRejectsInvalidConfig(t *testing.T) {
	bad := models.DefaultRBACConfig()
	bad.StrictMode = true // no allowed roles
	_, err := NewHolder(bad)
	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestCurrentCopiesRoleSlices(t *testing.T) {
	cfg := models.DefaultRBACConfig()
	cfg.ExcludedRoles = []string{"Admin"}
	h, err := NewHolder(cfg)
	require.NoError(t, err)

	snap := h.Current()
	snap.ExcludedRoles[0] = "mutated"
	assert.Equal(t, "Admin", h.Current().ExcludedRoles[0])
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rbac.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
enabled: true
auto_grant_access: true
require_clock_in: true
early_finish_grace_period_minutes: 30
excluded_roles: [Admin]
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.RequireClockIn)
	assert.Equal(t, 30, cfg.EarlyFinishGracePeriodMinutes)
	assert.Equal(t, []string{"Admin"}, cfg.ExcludedRoles)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rbac.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0600))

	_, err := Load(path)
	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidateRoleNames(t *testing.T) {
	cfg := models.DefaultRBACConfig()
	cfg.ExcludedRoles = []string{"Admin", ""}
	err := cfg.Validate()
	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
