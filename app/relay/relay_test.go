package relay

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewUnknownMode(t *testing.T) {
	_, err := New(Options{Mode: "forward"})
	require.Error(t, err)
}

func TestNewOverrides(t *testing.T) {
	t.Setenv("SRTRELAY_SRT_ADDRESS", ":6000")
	t.Setenv("SRTRELAY_SRT_LATENCY_MS", "200")

	r, err := New(Options{
		Mode: ModeRecv,
		Set: map[string]string{
			"srt.address": "example.com:7000",
			"udp.address": "239.1.2.3:5000",
		},
	})
	require.NoError(t, err)

	cfg := r.(*relay).config

	// Flags win over the environment
	require.Equal(t, "example.com:7000", cfg.SRT.Address)
	require.Equal(t, 200, cfg.SRT.Latency)
	require.Equal(t, "239.1.2.3:5000", cfg.UDP.Address)
}

func TestNewInvalidConfig(t *testing.T) {
	_, err := New(Options{
		Mode: ModeSend,
		Set: map[string]string{
			"udp.address": "10.0.0.1:5000",
		},
	})
	require.Error(t, err)

	_, err = New(Options{
		Mode: ModeSend,
		Set: map[string]string{
			"relay.chunk_size": "lots",
		},
	})
	require.Error(t, err)
}

func TestNewConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "srtrelay.json")

	err := os.WriteFile(path, []byte(`{"broadcast": {"clients_per_thread": 25}, "udp": {"address": "239.9.9.9:1234"}}`), 0600)
	require.NoError(t, err)

	r, err := New(Options{
		Mode:       ModeBroadcast,
		ConfigFile: path,
	})
	require.NoError(t, err)

	cfg := r.(*relay).config

	require.Equal(t, 25, cfg.Broadcast.ClientsPerThread)
	require.Equal(t, "239.9.9.9:1234", cfg.UDP.Address)
	require.Equal(t, ":9000", cfg.SRT.Address)
}

func TestNewConfigFileSyntaxError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "srtrelay.json")

	err := os.WriteFile(path, []byte(`{"broadcast": {"clients_per_thread": 25,}}`), 0600)
	require.NoError(t, err)

	_, err = New(Options{
		Mode:       ModeBroadcast,
		ConfigFile: path,
	})
	require.Error(t, err)
}

func TestNewConfigFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "srtrelay.json")

	r, err := New(Options{
		Mode:       ModeBroadcast,
		ConfigFile: path,
	})
	require.NoError(t, err)
	require.Equal(t, ":9000", r.(*relay).config.SRT.Address)

	_, err = New(Options{
		Mode:               ModeBroadcast,
		ConfigFile:         path,
		ConfigFileRequired: true,
	})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLogOutput(t *testing.T) {
	buf := &bytes.Buffer{}

	_, err := New(Options{
		Mode:      ModeBroadcast,
		LogWriter: buf,
	})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `application="srtrelay"`)
	require.Contains(t, buf.String(), `mode="broadcast"`)

	buf.Reset()

	_, err = New(Options{
		Mode:      ModeBroadcast,
		LogWriter: buf,
		Set: map[string]string{
			"log.level": "silent",
		},
	})
	require.NoError(t, err)
	require.Empty(t, buf.String())
}

func TestStartFailure(t *testing.T) {
	r, err := New(Options{
		Mode: ModeBroadcast,
		Set: map[string]string{
			"srt.address": "256.0.0.1:9000",
		},
	})
	require.NoError(t, err)

	err = r.Start(context.Background())
	require.Error(t, err)

	require.Equal(t, "idle", r.(*relay).state)

	// Nothing to stop
	r.Stop()
	r.Destroy()
}
