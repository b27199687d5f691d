package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivi-lang/aivi/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aivi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("max-resolution-rounds", config.DefaultMaxResolutionRounds, "")
	flags.Int("parallelism", 1, "")
	flags.String("log-level", config.DefaultLogLevel, "")
	flags.String("color", config.DefaultColor, "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestDefaults(t *testing.T) {
	cfg, err := config.Load("", testFlags(t))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMaxResolutionRounds, cfg.MaxResolutionRounds)
	assert.Equal(t, runtime.NumCPU(), cfg.Parallelism)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.Color)
	assert.Empty(t, cfg.File)

	def := config.Default()
	assert.Equal(t, cfg.MaxResolutionRounds, def.MaxResolutionRounds)
	assert.Equal(t, cfg.Parallelism, def.Parallelism)
	assert.NoError(t, def.Validate())
}

func TestLayering(t *testing.T) {
	path := writeConfig(t, "max_resolution_rounds: 4\nparallelism: 2\nlog_level: info\nlog_sections: [infer, desugar]\n")

	t.Run("file", func(t *testing.T) {
		cfg, err := config.Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.MaxResolutionRounds)
		assert.Equal(t, 2, cfg.Parallelism)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, []string{"infer", "desugar"}, cfg.LogSections)
		assert.Equal(t, path, cfg.File)
	})

	t.Run("environment over file", func(t *testing.T) {
		t.Setenv("AIVI_PARALLELISM", "6")
		t.Setenv("AIVI_LOG_SECTIONS", "workspace,module")
		cfg, err := config.Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, 6, cfg.Parallelism)
		assert.Equal(t, 4, cfg.MaxResolutionRounds)
		assert.Equal(t, []string{"workspace", "module"}, cfg.LogSections)
	})

	t.Run("flags over environment", func(t *testing.T) {
		t.Setenv("AIVI_PARALLELISM", "6")
		cfg, err := config.Load(path, testFlags(t, "--parallelism=3", "--color=never"))
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Parallelism)
		assert.Equal(t, "never", cfg.Color)
		assert.Equal(t, 4, cfg.MaxResolutionRounds, "unset flags keep lower layers")
	})
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name, content, msg string
	}{
		{"rounds", "max_resolution_rounds: 0\n", "max_resolution_rounds must be at least 1"},
		{"parallelism", "parallelism: -2\n", "parallelism must be at least 1"},
		{"color", "color: rainbow\n", "color must be one of"},
		{"yaml", "parallelism: [\n", "reading config file"},
		{"log section", "log_sections: [infer, codegen]\n", `log section must be one of cli, workspace, module, desugar, domain, infer, got "codegen"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorContains(t, err, "reading config file")
}
