package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/variant"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, variant.Calculus, cfg.Engine.Variant)
	assert.False(t, cfg.Engine.ResetTimeOnPublish)
	assert.Equal(t, 100*time.Millisecond, cfg.Server.TickInterval)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("  ")
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "theory.yaml")
	want := DefaultConfig()
	want.Engine.Variant = variant.Matrix
	want.Engine.ResetTimeOnPublish = true
	want.Engine.MilestoneFactor = 0.8
	want.Server.SpeedMultiplier = 60
	want.Runtime = Preset("low")

	require.NoError(t, want.Save(path))
	got, err := Load(path)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "theory.yaml")
	yaml := "engine:\n  variant: softcap\nserver:\n  tick_interval: 250ms\nruntime:\n  preset: stress\n  broadcast_channel_buffer: 0\n  client_send_buffer: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, variant.Softcap, cfg.Engine.Variant)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.TickInterval)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "stress", cfg.Runtime.Preset)
	assert.Equal(t, 512, cfg.Runtime.BroadcastChannelBuffer)
}

func TestLoad_Rejects(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown variant": "engine:\n  variant: nope\n",
		"bad factor":      "engine:\n  milestone_factor: 1.5\n",
		"negative decay":  "engine:\n  base_decay: -1\n",
		"zero tick":       "server:\n  tick_interval: 0s\n",
		"not yaml":        "engine: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestVariant_AppliesOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.BaseDecay = 0.001
	cfg.Engine.MilestoneStep = 1e10
	cfg.Engine.MilestoneFactor = 0.5

	v, err := cfg.Variant()
	require.NoError(t, err)

	assert.Equal(t, 0.001, v.BaseDecay)
	assert.Equal(t, variant.DefaultDecayGrowth, v.DecayGrowth)
	assert.Equal(t, 1e10, v.Milestones.Step)
	assert.Equal(t, 0.5, v.Milestones.Factor)
}

func TestPreset(t *testing.T) {
	assert.Equal(t, "stress", Preset("stress").Preset)
	assert.Equal(t, "low", Preset("low").Preset)
	assert.Equal(t, "default", Preset("whatever").Preset)
	assert.Greater(t, Preset("stress").MaxClients, Preset("low").MaxClients)
}
