package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewfunnel/pkg/config"
)

type defaultsConfig struct {
	TrialDays int           `env:"TEST_TRIAL_DAYS" envDefault:"14"`
	Interval  time.Duration `env:"TEST_POLL_INTERVAL" envDefault:"60s"`
	Enabled   bool          `env:"TEST_ENABLED" envDefault:"true"`
}

type overrideConfig struct {
	Value string `env:"TEST_OVERRIDE_VALUE" envDefault:"default"`
}

type singletonConfig struct {
	Value string `env:"TEST_SINGLETON_VALUE"`
}

type requiredConfig struct {
	Secret string `env:"TEST_REQUIRED_SECRET,required"`
}

type fileConfig struct {
	String string   `env:"TEST_FILE_STRING"`
	Int    int      `env:"TEST_FILE_INT"`
	List   []string `env:"TEST_FILE_LIST" envSeparator:","`
}

func TestLoad_DefaultValues(t *testing.T) {
	os.Unsetenv("TEST_TRIAL_DAYS")
	os.Unsetenv("TEST_POLL_INTERVAL")
	os.Unsetenv("TEST_ENABLED")

	var cfg defaultsConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 14, cfg.TrialDays)
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.True(t, cfg.Enabled)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TEST_OVERRIDE_VALUE", "custom")

	var cfg overrideConfig
	require.NoError(t, config.ForceReload(&cfg))
	assert.Equal(t, "custom", cfg.Value)
}

func TestLoad_Singleton(t *testing.T) {
	t.Setenv("TEST_SINGLETON_VALUE", "first")

	var first singletonConfig
	require.NoError(t, config.Load(&first))

	t.Setenv("TEST_SINGLETON_VALUE", "second")

	var second singletonConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.Value)

	var reloaded singletonConfig
	require.NoError(t, config.ForceReload(&reloaded))
	assert.Equal(t, "second", reloaded.Value)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("TEST_REQUIRED_SECRET")

	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	// A failed parse is not cached.
	t.Setenv("TEST_REQUIRED_SECRET", "s3cr3t")
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "s3cr3t", cfg.Secret)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *defaultsConfig
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
}

func TestLoadEnv(t *testing.T) {
	os.Unsetenv("TEST_FILE_STRING")
	os.Unsetenv("TEST_FILE_INT")
	os.Unsetenv("TEST_FILE_LIST")
	t.Cleanup(func() {
		os.Unsetenv("TEST_FILE_STRING")
		os.Unsetenv("TEST_FILE_INT")
		os.Unsetenv("TEST_FILE_LIST")
	})

	require.NoError(t, config.LoadEnv("testdata/.env.test"))

	var cfg fileConfig
	require.NoError(t, config.ForceReload(&cfg))
	assert.Equal(t, "from_file", cfg.String)
	assert.Equal(t, 1234, cfg.Int)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.List)

	err := config.LoadEnv("testdata/missing.env")
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
	assert.Panics(t, func() { config.MustLoadEnv("testdata/missing.env") })
}
