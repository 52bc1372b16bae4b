// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"code.hybscloud.com/radiosched/config"
	"code.hybscloud.com/radiosched/counters"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestLoadNoFileNoFlags(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}

func TestLoadYAMLOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window: 16\nnum_ues: 5\nmode: downlink\n"), 0o644))

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	require.EqualValues(t, 16, cfg.Window)
	require.EqualValues(t, 5, cfg.NumUEs)
	require.Equal(t, counters.ModeDownlink, cfg.RetireMode())
}

func TestFlagsOverrideYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window: 16\n"), 0o644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--window=32"}))

	cfg, err := config.Load(path, fs)
	require.NoError(t, err)
	require.EqualValues(t, 32, cfg.Window)
}

func TestValidateRejectsNonPowerOfTwoWindow(t *testing.T) {
	cfg := config.Default()
	cfg.Window = 6
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = "sideways"
	require.Error(t, cfg.Validate())
}

func TestCountersMatchesFields(t *testing.T) {
	cfg := config.Default()
	cc := cfg.Counters()
	require.Equal(t, cfg.Window, cc.Window)
	require.Equal(t, cfg.NumAntennas, cc.NumAnt)
	require.Equal(t, cfg.NumUEs, cc.NumUE)
}
