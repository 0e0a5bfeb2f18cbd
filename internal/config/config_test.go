package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.RemoteZoneFee.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, "Within Coimbatore", cfg.LocalZoneLabel)
	assert.Equal(t, "Outside Coimbatore", cfg.RemoteZoneLabel)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.RealtimeEnabled)
	assert.Empty(t, cfg.AdminEmails)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ADMIN_EMAILS", " owner@snapzone.in , ,ops@snapzone.in")
	t.Setenv("REMOTE_ZONE_FEE", "99.50")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://snapzone.in")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("REALTIME_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"owner@snapzone.in", "ops@snapzone.in"}, cfg.AdminEmails)
	assert.True(t, cfg.RemoteZoneFee.Equal(decimal.RequireFromString("99.5")))
	assert.Equal(t, []string{"https://snapzone.in"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.RealtimeEnabled)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"REMOTE_ZONE_FEE": "-1",
		"SUPABASE_URL":    "not a url",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	setRequiredEnv(t)
	os.Unsetenv("SUPABASE_ANON_KEY")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SUPABASE_ANON_KEY=from-file\nSTORAGE_BUCKET=frames\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Cleanup(func() { os.Unsetenv("STORAGE_BUCKET") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.SupabaseAnonKey)
	assert.Equal(t, "frames", cfg.StorageBucket)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `products:
  - name: Oak Classic
    description: Solid oak frame
    price: "1499.00"
    image_url: https://cdn.example.com/oak.jpg
    category: wood
    material: matt
    size: 8x10
    stock_quantity: 12
    featured: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat.Products, 1)

	p := cat.Products[0]
	assert.Equal(t, "Oak Classic", p.Name)
	assert.True(t, p.Featured)
	price, err := p.PriceValue()
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(1499)))
}

func TestLoadCatalogRejectsNegativeStock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - name: X\n    price: \"1\"\n    stock_quantity: -1\n"), 0o600))

	_, err := LoadCatalog(path)
	assert.Error(t, err)
}
