package stores

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"storefront/pkg/config"
)

func TestSecrets_RoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef")
	blob, err := EncryptSecrets(Secrets{StripeSecretKey: "sk_test_123"}, key)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), blob[0])
	assert.NotContains(t, string(blob), "sk_test_123")

	got, err := DecryptSecrets(blob, key)
	require.NoError(t, err)
	assert.Equal(t, "sk_test_123", got.StripeSecretKey)

	_, err = DecryptSecrets(blob, []byte("another key"))
	assert.Error(t, err)
	_, err = DecryptSecrets(blob, nil)
	assert.Error(t, err)
}

func TestSecrets_PlainWithoutKey(t *testing.T) {
	blob, err := EncryptSecrets(Secrets{StripeSecretKey: "sk_plain"}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"stripe_secret_key":"sk_plain"}`, string(blob))

	got, err := DecryptSecrets(blob, nil)
	require.NoError(t, err)
	assert.Equal(t, "sk_plain", got.StripeSecretKey)

	empty, err := DecryptSecrets(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.StripeSecretKey)
}

func TestParseDefinitions(t *testing.T) {
	t.Run("yaml list", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		defs, err := ParseDefinitions([]byte(`
- id: 11111111-1111-1111-1111-111111111111
  slug: acme
  host: shop.acme.test
  medusa_url: https://api.acme.test/
  default_country: DK
- slug: missing-id
  host: nope.test
`), zap.New(core).Sugar())
		require.NoError(t, err)
		require.Len(t, defs, 1)
		s := defs[0].Store()
		assert.Equal(t, "https://api.acme.test", s.MedusaURL)
		assert.Equal(t, "dk", s.DefaultCountry)
		assert.Equal(t, "acme", s.Name)

		skipped := logs.FilterMessageSnippet("skipped").All()
		require.Len(t, skipped, 1)
		assert.Equal(t, "missing-id", skipped[0].ContextMap()["slug"])
	})
	t.Run("single json document", func(t *testing.T) {
		defs, err := ParseDefinitions([]byte(`{"id":"x","host":"a.test","slug":"a","publishable_key":"pk_1"}`), zap.NewNop().Sugar())
		require.NoError(t, err)
		require.Len(t, defs, 1)
		assert.Equal(t, "pk_1", defs[0].PublishableKey)
	})
	t.Run("empty", func(t *testing.T) {
		defs, err := ParseDefinitions([]byte("  \n"), zap.NewNop().Sugar())
		require.NoError(t, err)
		assert.Empty(t, defs)
	})

	bad := map[string]string{
		"garbage":        "::: not yaml",
		"unknown keys":   "hosts: [a, b]\nfoo: bar",
		"scalar":         "just a string",
		"no usable item": "- slug: a\n  host: a.test\n",
		"typo in list":   "- id: a\n  hostname: a.test\n",
	}
	for name, in := range bad {
		t.Run(name, func(t *testing.T) {
			defs, err := ParseDefinitions([]byte(in), zap.NewNop().Sugar())
			assert.Error(t, err)
			assert.Empty(t, defs)
		})
	}
}

func TestParseSeedJSON(t *testing.T) {
	defs, err := parseSeedJSON(`[{"id":"a","host":"a.test","slug":"a"}]`, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Len(t, defs, 1)

	_, err = parseSeedJSON(`[{"id":"a","hostname":"a.test"}]`, zap.NewNop().Sugar())
	assert.Error(t, err)

	_, err = parseSeedJSON(`[{"slug":"a"}]`, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, ErrNoDefinitions)
}

func TestLoadDefinitionsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("id: a\nhost: a.test\nslug: a\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`[{"id":"b","host":"b.test","slug":"b"}]`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	defs, err := LoadDefinitionsDir(dir, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Len(t, defs, 2)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.yaml"), []byte("name: only a name\n"), 0o600))
	_, err = LoadDefinitionsDir(dir, zap.NewNop().Sugar())
	assert.ErrorIs(t, err, ErrNoDefinitions)
}

func TestMemoryProvider(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider(zap.NewNop().Sugar(),
		Store{ID: "1", Slug: "b", Host: "b.test", MedusaURL: "http://m/"},
		Store{ID: "2", Slug: "a", Host: "a.test"},
	)
	s, err := p.ResolveStoreByHost(ctx, "b.test")
	require.NoError(t, err)
	assert.Equal(t, "http://m", s.MedusaURL)

	_, err = p.ResolveStoreByHost(ctx, "unknown.test")
	assert.ErrorIs(t, err, ErrStoreNotFound)

	s, err = p.ResolveStoreByID(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "a.test", s.Host)

	list, err := p.ListStores(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Slug)
}

func TestMemoryProviderFromEnv_DevFallback(t *testing.T) {
	t.Setenv("STORE_SEED_JSON", "")
	cfg := config.Config{MedusaURL: "http://medusa:9000", DefaultCountry: "US", StripeSecretKey: "sk"}
	p := NewMemoryProviderFromEnv(cfg, zap.NewNop().Sugar())

	s, err := p.ResolveStoreByHost(context.Background(), "localhost:8080")
	require.NoError(t, err)
	assert.Equal(t, "dev", s.Slug)
	assert.Equal(t, "us", s.DefaultCountry)
	assert.True(t, s.HasStripe())

	list, err := p.ListStores(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryProviderFromEnv_SeedJSON(t *testing.T) {
	t.Setenv("STORE_SEED_JSON", `[{"id":"s1","slug":"one","host":"one.test","medusa_url":"http://one"}]`)
	p := NewMemoryProviderFromEnv(config.Config{}, zap.NewNop().Sugar())

	s, err := p.ResolveStoreByHost(context.Background(), "one.test")
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	_, err = p.ResolveStoreByHost(context.Background(), "localhost")
	assert.ErrorIs(t, err, ErrStoreNotFound)
}
