// Package qr renders cacheable PNG QR codes pointing at site paths.
package qr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/stokvelhq/patron/internal/config"
	"go.uber.org/zap"
)

// Generator renders PNG QR codes for URLs under the configured base URL.
type Generator struct {
	baseURL string
	size    int
	ttl     time.Duration
	cache   Cache
	log     *zap.Logger
}

func NewGenerator(cfg config.QRConfig, cache Cache, log *zap.Logger) *Generator {
	size := cfg.Scale * 32
	if size <= 0 {
		size = 256
	}
	return &Generator{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		size:    size,
		ttl:     cfg.CacheTTL,
		cache:   cache,
		log:     log.Named("qr"),
	}
}

// TargetURL resolves a request path against the configured base URL. Paths
// never escape the base host.
func (g *Generator) TargetURL(targetPath string) string {
	normalized := strings.Trim(targetPath, "/")
	if normalized == "" {
		return g.baseURL
	}
	return g.baseURL + "/" + normalized
}

// PNG returns the QR image for a site path, from cache when possible.
func (g *Generator) PNG(ctx context.Context, targetPath string) ([]byte, error) {
	target := g.TargetURL(targetPath)

	digest := sha256.Sum256([]byte(target))
	key := "qr:" + hex.EncodeToString(digest[:])

	if image, ok := g.cache.Get(ctx, key); ok {
		return image, nil
	}

	image, err := qrcode.Encode(target, qrcode.Medium, g.size)
	if err != nil {
		return nil, err
	}

	g.cache.Set(ctx, key, image, g.ttl)
	return image, nil
}
