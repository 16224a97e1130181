package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	require.False(t, cfg.Storage.Enabled())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":9999")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,")
	t.Setenv("OUTBOX_BATCH_SIZE", "50")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co/")
	t.Setenv("NUTRIENT_CACHE_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.HTTPAddress)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 50, cfg.OutboxBatchSize)
	require.Equal(t, "https://project.supabase.co", cfg.SupabaseURL)
	require.Equal(t, time.Hour, cfg.NutrientCacheTTL)
}

func TestLoadRejectsInvalidBatchSize(t *testing.T) {
	t.Setenv("OUTBOX_BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
}
