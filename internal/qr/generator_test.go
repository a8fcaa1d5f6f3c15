package qr

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stokvelhq/patron/internal/clock"
	"github.com/stokvelhq/patron/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func newTestGenerator(clk clock.Clock) *Generator {
	cfg := config.QRConfig{BaseURL: "https://patron.example.org/", Scale: 8, CacheTTL: time.Hour}
	return NewGenerator(cfg, NewMemoryCache(clk), zap.NewNop())
}

func TestTargetURLNormalizesPaths(t *testing.T) {
	g := newTestGenerator(clock.NewFakeClock(time.Now()))

	assert.Equal(t, "https://patron.example.org", g.TargetURL(""))
	assert.Equal(t, "https://patron.example.org", g.TargetURL("/"))
	assert.Equal(t, "https://patron.example.org/contribute", g.TargetURL("/contribute/"))
	assert.Equal(t, "https://patron.example.org/a/b", g.TargetURL("a/b"))
}

func TestPNGRendersAndCaches(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	g := newTestGenerator(clk)

	first, err := g.PNG(context.Background(), "/contribute")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(first, pngMagic))

	second, err := g.PNG(context.Background(), "contribute")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMemoryCacheExpiresEntries(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	cache := NewMemoryCache(clk)

	cache.Set(context.Background(), "k", []byte("v"), time.Minute)
	value, ok := cache.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	clk.Advance(2 * time.Minute)
	_, ok = cache.Get(context.Background(), "k")
	assert.False(t, ok)
}
