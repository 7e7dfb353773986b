package main

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dddw/blockdev"
	"dddw/retrodfrg"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type fakeProber struct {
	candidates []blockdev.Candidate
	err        error
}

func (p fakeProber) Candidates() ([]blockdev.Candidate, error) { return p.candidates, p.err }

func (p fakeProber) DeviceNumber(c blockdev.Candidate) (uint64, error) {
	if c.Name == "broken" {
		return 0, errors.New("no number")
	}
	return 0x0801, nil
}

func (p fakeProber) Size(c blockdev.Candidate) (uint64, error) {
	if c.Name == "broken" {
		return 0, errors.New("no size")
	}
	return 1 << 30, nil
}

func (p fakeProber) MountPoints(c blockdev.Candidate) ([]string, error) {
	if c.Name == "sda1" {
		return []string{"/boot"}, nil
	}
	return nil, nil
}

type testEnv struct {
	app    *app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	// checks counts calls to the elevation checker
	checks int
}

func newTestEnv(t *testing.T, elevated bool, elevErr error) *testEnv {
	t.Helper()
	for _, k := range []string{"DDDW_LOG", "DDDW_CHUNK_SIZE", "DDDW_PROGRESS"} {
		t.Setenv(k, "")
	}
	e := &testEnv{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	e.app = &app{
		stdout: e.stdout,
		stderr: e.stderr,
		isElevated: func() (bool, error) {
			e.checks++
			return elevated, elevErr
		},
		enumerator: blockdev.NewEnumerator,
		opener:     blockdev.NewOpener,
		newUI: func() (*retrodfrg.UI, error) {
			return nil, errors.New("no terminal in tests")
		},
		exit: func(code int) { t.Errorf("unexpected exit %d", code) },
	}
	return e
}

func writeInput(t *testing.T, n int) (string, []byte) {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "disk.raw")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path, data
}

func TestDumpPlainFile(t *testing.T) {
	e := newTestEnv(t, true, nil)
	in, data := writeInput(t, 3*4096+100)
	out := filepath.Join(t.TempDir(), "backup")

	code := e.app.run([]string{"dump", "-i", in, "-o", out, "--chunk-size", "4k"})
	require.Equal(t, 0, code, e.stderr.String())

	got, err := os.ReadFile(out + ".img")
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, 1, e.checks)
	assert.Contains(t, e.stdout.String(), "Image written: "+out+".img")
	assert.Contains(t, e.stderr.String(), "copy finished")
}

func TestDumpOverwritesExistingImage(t *testing.T) {
	e := newTestEnv(t, true, nil)
	in, data := writeInput(t, 1024)
	out := filepath.Join(t.TempDir(), "backup")
	require.NoError(t, os.WriteFile(out+".img", bytes.Repeat([]byte{0xff}, 8192), 0o644))

	require.Equal(t, 0, e.app.run([]string{"dump", "--inputfile", in, "--outputfile", out, "--no-progress"}))

	got, err := os.ReadFile(out + ".img")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDumpNotElevated(t *testing.T) {
	e := newTestEnv(t, false, nil)
	in, _ := writeInput(t, 1024)
	out := filepath.Join(t.TempDir(), "backup")

	assert.Equal(t, 1, e.app.run([]string{"dump", "-i", in, "-o", out}))
	assert.NoFileExists(t, out+".img")
	assert.Contains(t, e.stderr.String(), "administrator or root")
}

func TestDumpElevationCheckError(t *testing.T) {
	e := newTestEnv(t, true, errors.New("token query failed"))
	in, _ := writeInput(t, 1024)
	out := filepath.Join(t.TempDir(), "backup")

	assert.Equal(t, 1, e.app.run([]string{"dump", "-i", in, "-o", out}))
	assert.NoFileExists(t, out+".img")
	assert.Contains(t, e.stderr.String(), "token query failed")
}

func TestDumpSkipElevationCheck(t *testing.T) {
	e := newTestEnv(t, false, nil)
	in, data := writeInput(t, 2048)
	out := filepath.Join(t.TempDir(), "backup")

	require.Equal(t, 0, e.app.run([]string{"dump", "-i", in, "-o", out, "--skip-elevation-check", "--no-progress"}))
	assert.Equal(t, 0, e.checks)
	assert.Contains(t, e.stderr.String(), "elevation check skipped")

	got, err := os.ReadFile(out + ".img")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDumpInvalidInput(t *testing.T) {
	tcs := []struct {
		name  string
		input string
	}{
		{"index overflow", "PhysicalDrive999"},
		{"missing index", `\\.\HarddiskVolume`},
		{"missing file", filepath.Join(os.TempDir(), "dddw-does-not-exist", "disk.raw")},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnv(t, true, nil)
			out := filepath.Join(t.TempDir(), "backup")

			assert.Equal(t, 1, e.app.run([]string{"dump", "-i", tc.input, "-o", out}))
			assert.NoFileExists(t, out+".img")
			assert.Contains(t, e.stderr.String(), "dddw failed")
		})
	}
}

func TestDumpFlagValidation(t *testing.T) {
	in, _ := writeInput(t, 512)
	out := filepath.Join(t.TempDir(), "backup")

	for _, args := range [][]string{
		{"dump", "-i", in},
		{"dump", "-o", out},
		{"dump", "-i", in, "-o", out, "--chunk-size", "1000"},
		{"dump", "-i", in, "-o", out, "--chunk-size", "lots"},
		{"dump", "-i", in, "-o", out, "--chunk-size", "64g"},
		{"dump", "-i", in, "-o", out, "-L", "shouty"},
	} {
		e := newTestEnv(t, true, nil)
		assert.Equal(t, 1, e.app.run(args), args)
	}
	assert.NoFileExists(t, out+".img")
}

func TestDumpTUIStartFailure(t *testing.T) {
	e := newTestEnv(t, true, nil)
	in, _ := writeInput(t, 512)
	out := filepath.Join(t.TempDir(), "backup")

	assert.Equal(t, 1, e.app.run([]string{"dump", "-i", in, "-o", out, "--tui"}))
	assert.Contains(t, e.stderr.String(), "start terminal UI")
}

func TestConfigFile(t *testing.T) {
	e := newTestEnv(t, true, nil)
	in, _ := writeInput(t, 512)
	out := filepath.Join(t.TempDir(), "backup")
	cfg := filepath.Join(t.TempDir(), "dddw.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log_level: debug\nprogress: none\n"), 0o644))

	require.Equal(t, 0, e.app.run([]string{"dump", "--config", cfg, "-i", in, "-o", out}))
	assert.Equal(t, zerolog.DebugLevel, e.app.cfg.LogLevel)
	assert.Contains(t, e.stderr.String(), "opened device")
	assert.NotContains(t, e.stderr.String(), "copy started")
}

func TestFlagsOverrideEnv(t *testing.T) {
	e := newTestEnv(t, true, nil)
	t.Setenv("DDDW_LOG", "error")
	t.Setenv("DDDW_CHUNK_SIZE", "8k")
	in, _ := writeInput(t, 512)
	out := filepath.Join(t.TempDir(), "backup")

	require.Equal(t, 0, e.app.run([]string{"dump", "-L", "warn", "--chunk-size", "1k", "-i", in, "-o", out}))
	assert.Equal(t, zerolog.WarnLevel, e.app.cfg.LogLevel)
	assert.Equal(t, 1024, e.app.cfg.ChunkSize)
}

func TestFullLogLevels(t *testing.T) {
	for level, want := range map[string]zerolog.Level{
		"fullinfo":  zerolog.InfoLevel,
		"fulldebug": zerolog.DebugLevel,
	} {
		e := newTestEnv(t, true, nil)
		in, _ := writeInput(t, 512)
		out := filepath.Join(t.TempDir(), "backup")

		require.Equal(t, 0, e.app.run([]string{"dump", "-L", level, "--no-progress", "-i", in, "-o", out}), level)
		assert.Equal(t, want, e.app.cfg.LogLevel, level)
		assert.True(t, e.app.cfg.FullTimestamps, level)
	}
}

func TestDumpLogsProgressWhenStderrIsNotTerminal(t *testing.T) {
	e := newTestEnv(t, true, nil)
	in, _ := writeInput(t, 8192)
	out := filepath.Join(t.TempDir(), "backup")

	require.Equal(t, 0, e.app.run([]string{"dump", "--chunk-size", "512", "-i", in, "-o", out}))
	assert.Contains(t, e.stderr.String(), "INF copy progress")
}

func TestListDevices(t *testing.T) {
	e := newTestEnv(t, true, nil)
	e.app.enumerator = func(log zerolog.Logger) *blockdev.Enumerator {
		return &blockdev.Enumerator{Log: log, Prober: fakeProber{candidates: []blockdev.Candidate{
			{Path: "/dev/sda", Name: "sda", Class: blockdev.PhysicalDisk, Media: "fixed"},
			{Path: "/dev/sda1", Name: "sda1", Class: blockdev.Volume, Media: "fixed"},
			{Path: "/dev/sdz", Name: "broken", Class: blockdev.PhysicalDisk},
		}}}
	}

	require.Equal(t, 0, e.app.run([]string{"list-devices"}))
	text := e.stdout.String()
	assert.Contains(t, text, "Path")
	assert.Contains(t, text, "/dev/sda1")
	assert.Contains(t, text, "1.00 GiB")
	assert.Contains(t, text, "2049")
	assert.Contains(t, text, "/boot")
	assert.Contains(t, text, "1 device(s) could not be fully queried")
	assert.Equal(t, 0, e.checks)
}

func TestListDevicesEnumerationError(t *testing.T) {
	e := newTestEnv(t, true, nil)
	e.app.enumerator = func(log zerolog.Logger) *blockdev.Enumerator {
		return &blockdev.Enumerator{Log: log, Prober: fakeProber{err: errors.New("volume walk failed")}}
	}

	assert.Equal(t, 1, e.app.run([]string{"list-devices"}))
	assert.Contains(t, e.stderr.String(), "volume walk failed")
	assert.Empty(t, e.stdout.String())
}

func TestVersion(t *testing.T) {
	e := newTestEnv(t, true, nil)
	require.Equal(t, 0, e.app.run([]string{"version"}))
	assert.Equal(t, "dddw "+version+"\n", e.stdout.String())
}
