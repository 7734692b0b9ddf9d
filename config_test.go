package archivedir_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	archivedir "github.com/hashicorp/go-archivedir"
)

// TestCheckMaxFiles implements test cases
func TestCheckMaxFiles(t *testing.T) {
	// prepare test cases
	cases := []struct {
		name        string
		input       int64
		config      *archivedir.Config
		expectError bool
	}{
		{
			name:        "less files then maximum",
			input:       5,                                                 // within limit
			config:      archivedir.NewConfig(archivedir.WithMaxFiles(10)), // 10
			expectError: false,
		},
		{
			name:        "more files then maximum",
			input:       15,                                                // over limit
			config:      archivedir.NewConfig(archivedir.WithMaxFiles(10)), // 10
			expectError: true,
		},
		{
			name:        "disable file counter check",
			input:       5000,                                              // ignored
			config:      archivedir.NewConfig(archivedir.WithMaxFiles(-1)), // disable
			expectError: false,
		},
	}

	// run cases
	for i, tc := range cases {
		t.Run(fmt.Sprintf("tc %d", i), func(t *testing.T) {
			want := tc.expectError
			got := tc.config.CheckMaxFiles(tc.input) != nil
			if got != want {
				t.Errorf("test case %d failed: %s", i, tc.name)
			}
		})
	}
}

// TestCheckExtractionSize implements test cases
func TestCheckExtractionSize(t *testing.T) {
	config := archivedir.NewConfig(archivedir.WithMaxExtractionSize(1024))

	if err := config.CheckExtractionSize(1024); err != nil {
		t.Errorf("expected size at the limit to pass, got %s", err)
	}
	if err := config.CheckExtractionSize(1025); err == nil {
		t.Errorf("expected size over the limit to fail")
	}
	if err := archivedir.NewConfig().CheckExtractionSize(1 << 40); err != nil {
		t.Errorf("expected disabled check by default, got %s", err)
	}
}

func TestWithMaxExtractionSize(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want int64
	}{
		{
			name: "Set max extraction size to 100",
			size: 100,
			want: 100,
		},
		{
			name: "Set max extraction size to -1 (disable check)",
			size: -1,
			want: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &archivedir.Config{}
			option := archivedir.WithMaxExtractionSize(tt.size)
			option(config)

			if config.MaxExtractionSize() != tt.want {
				t.Errorf("WithMaxExtractionSize() set maxExtractionSize to %v, want %v", config.MaxExtractionSize(), tt.want)
			}
		})
	}
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := archivedir.NewConfig()

	if cfg.PollAttempts() != 30 || cfg.PollInterval() != 100*time.Millisecond {
		t.Errorf("unexpected polling defaults %d x %s", cfg.PollAttempts(), cfg.PollInterval())
	}
	if cfg.TarCommand() != "tar" || cfg.UnzipCommand() != "unzip" || cfg.ZipCommand() != "zip" {
		t.Errorf("unexpected tool defaults %s %s %s", cfg.TarCommand(), cfg.UnzipCommand(), cfg.ZipCommand())
	}
	if cfg.MaxFiles() != -1 || cfg.MaxExtractionSize() != -1 {
		t.Errorf("expected limits to be disabled by default")
	}
	if len(cfg.GenericToolCandidates()) == 0 {
		t.Errorf("expected default generic tool candidates")
	}
	if cfg.Runner() == nil || cfg.Logger() == nil || cfg.TelemetryHook() == nil {
		t.Errorf("expected runner, logger and telemetry hook to be set")
	}
	if len(cfg.ScratchDir()) == 0 {
		t.Errorf("expected default scratch directory")
	}
}

func TestWithPolling(t *testing.T) {
	tests := []struct {
		name         string
		interval     time.Duration
		attempts     int
		wantInterval time.Duration
		wantAttempts int
	}{
		{name: "custom", interval: time.Second, attempts: 5, wantInterval: time.Second, wantAttempts: 5},
		{name: "zero keeps defaults", interval: 0, attempts: 0, wantInterval: 100 * time.Millisecond, wantAttempts: 30},
		{name: "negative keeps defaults", interval: -time.Second, attempts: -1, wantInterval: 100 * time.Millisecond, wantAttempts: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := archivedir.NewConfig(archivedir.WithPolling(tt.interval, tt.attempts))
			if cfg.PollInterval() != tt.wantInterval || cfg.PollAttempts() != tt.wantAttempts {
				t.Errorf("WithPolling() = %s x %d, want %s x %d", cfg.PollInterval(), cfg.PollAttempts(), tt.wantInterval, tt.wantAttempts)
			}
		})
	}
}

func TestWithCommands(t *testing.T) {
	cfg := archivedir.NewConfig(
		archivedir.WithTarCommand("gtar"),
		archivedir.WithZipCommands("/usr/local/bin/unzip", ""),
		archivedir.WithGenericToolCandidates("/opt/7zz"),
		archivedir.WithScratchDir("/var/tmp/scratch"),
	)

	if cfg.TarCommand() != "gtar" {
		t.Errorf("WithTarCommand() = %s, want gtar", cfg.TarCommand())
	}
	if cfg.UnzipCommand() != "/usr/local/bin/unzip" || cfg.ZipCommand() != "zip" {
		t.Errorf("WithZipCommands() = %s %s", cfg.UnzipCommand(), cfg.ZipCommand())
	}
	if got := cfg.GenericToolCandidates(); len(got) != 1 || got[0] != "/opt/7zz" {
		t.Errorf("WithGenericToolCandidates() = %v", got)
	}
	if cfg.ScratchDir() != "/var/tmp/scratch" {
		t.Errorf("WithScratchDir() = %s", cfg.ScratchDir())
	}
}

func TestWithRunner(t *testing.T) {
	runner := newFakeRunner()
	cfg := archivedir.NewConfig(archivedir.WithRunner(runner))

	if cfg.Runner() != runner {
		t.Errorf("expected custom runner")
	}
}

// TestWithLogger implements test cases
func TestWithLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	config := &archivedir.Config{}
	option := archivedir.WithLogger(logger)
	option(config)

	if config.Logger() == nil {
		t.Errorf("Expected Logger to be set, but it was nil")
	}
}

func TestWithTelemetryHook(t *testing.T) {

	// Create a new Config without specified hook
	telemetryDelivered := false
	c := archivedir.NewConfig(archivedir.WithTelemetryHook(func(ctx context.Context, td *archivedir.TelemetryData) {
		telemetryDelivered = true
	}))

	// submit hook
	c.TelemetryHook()(context.Background(), &archivedir.TelemetryData{})

	// check if hook was delivered
	if !telemetryDelivered {
		t.Errorf("Expected telemetry data to be delivered, but it was not")
	}

}
