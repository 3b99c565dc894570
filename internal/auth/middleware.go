// Package auth implements the partner API-key pipeline gating every wallet
// operation: header extraction, cached hash lookup, partner status and IP
// allowlist checks, wildcard permission matching, and a rate-limited
// last-used-at bump. Grounded on the teacher's internal/auth/plugin_auth.go
// (HMAC-scoped opaque token with expiry and a scope list — the closest
// teacher analogue to a permission-bearing credential) and the
// context-key/middleware-factory idiom of internal/auth/middleware.go.
package auth

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/musig5344/ocasino/internal/cache"
	icrypto "github.com/musig5344/ocasino/internal/crypto"
	"github.com/musig5344/ocasino/internal/domain"
	"github.com/musig5344/ocasino/internal/repository"
)

type contextKey string

const (
	partnerKey contextKey = "auth_partner"
	apiKeyKey  contextKey = "auth_api_key"
)

// Identity is what the pipeline attaches to the request context once an
// API key has cleared every check.
type Identity struct {
	Partner *domain.Partner
	Key     *domain.ApiKey
}

// PartnerFromContext extracts the authenticated partner, or nil if the
// request was never authenticated (e.g. a skip-listed path).
func PartnerFromContext(ctx context.Context) *domain.Partner {
	p, _ := ctx.Value(partnerKey).(*domain.Partner)
	return p
}

// ApiKeyFromContext extracts the authenticated api key.
func ApiKeyFromContext(ctx context.Context) *domain.ApiKey {
	k, _ := ctx.Value(apiKeyKey).(*domain.ApiKey)
	return k
}

// WithIdentity attaches a partner and api key to ctx the same way the
// pipeline middleware does. Exported so tests (and any handler composing
// its own context) can set up an authenticated request without running
// the full middleware chain.
func WithIdentity(ctx context.Context, partner *domain.Partner, key *domain.ApiKey) context.Context {
	ctx = context.WithValue(ctx, partnerKey, partner)
	ctx = context.WithValue(ctx, apiKeyKey, key)
	return ctx
}

// touchInterval bounds how often a key's last_used_at is bumped (spec:
// at most once per hour), so authentication never serializes on a write.
const touchInterval = time.Hour

// Pipeline wires the repositories and cache the auth middleware needs.
type Pipeline struct {
	partners repository.PartnerRepository
	keys     repository.ApiKeyRepository
	db       repository.DBTX
	cache    cache.Store
	lastTouch
}

type lastTouch struct {
	// tracked in-process only; a missed touch after a restart just means
	// one extra DB write, never a correctness issue.
	seen map[uuid.UUID]time.Time
}

// NewPipeline builds an auth pipeline.
func NewPipeline(partners repository.PartnerRepository, keys repository.ApiKeyRepository, db repository.DBTX, store cache.Store) *Pipeline {
	return &Pipeline{partners: partners, keys: keys, db: db, cache: store, lastTouch: lastTouch{seen: make(map[uuid.UUID]time.Time)}}
}

// SkipPaths are exact path matches the middleware passes through
// unauthenticated (health checks, etc). Configured by the caller.
type Options struct {
	SkipPaths             []string
	RequirePermission      func(r *http.Request) string
	EnforceIPAllowlist bool
}

// Middleware returns the chi-compatible middleware implementing the 8-step
// pipeline from the spec: skip-list check, key extraction, cached lookup,
// partner status check, IP allowlist, permission check, context
// attachment, and an async last-used-at bump.
func (p *Pipeline) Middleware(opts Options) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(opts.SkipPaths))
	for _, path := range opts.SkipPaths {
		skip[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r.WithContext(r.Context()))
				return
			}

			rawKey := r.Header.Get("X-API-Key")
			if rawKey == "" {
				writeAuthError(w, domain.ErrUnauthenticated("missing X-API-Key header"))
				return
			}

			ctx := r.Context()
			key, err := p.lookupKey(ctx, rawKey)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			if !key.Active || key.IsExpired(time.Now()) {
				writeAuthError(w, domain.ErrUnauthenticated("api key is inactive or expired"))
				return
			}

			partner, err := p.partners.FindByID(ctx, p.db, key.PartnerID)
			if err != nil {
				writeAuthError(w, domain.ErrInternal("load partner", err))
				return
			}
			if partner == nil || !partner.IsActive() {
				writeAuthError(w, domain.ErrUnauthenticated("partner is not active"))
				return
			}

			if opts.EnforceIPAllowlist && len(partner.AllowedIPs) > 0 {
				ip := clientIP(r)
				if !ipAllowed(ip, partner.AllowedIPs) {
					writeAuthError(w, domain.ErrIPNotAllowed(ip))
					return
				}
			}

			if opts.RequirePermission != nil {
				required := opts.RequirePermission(r)
				if required != "" && !HasPermission(key.Permissions, required) {
					writeAuthError(w, domain.ErrPermissionDenied(required))
					return
				}
			}

			ctx = WithIdentity(ctx, partner, key)

			p.touchAsync(key.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// lookupKey resolves a raw API key to its stored record. The hash-then-cache
// path mirrors a cache-then-store fallback: a cache hit skips the DB
// entirely, a miss falls through to FindByHash and backfills the cache with
// a short TTL (correctness never depends on the cache being warm).
func (p *Pipeline) lookupKey(ctx context.Context, rawKey string) (*domain.ApiKey, error) {
	keyHash := icrypto.HashAPIKey(rawKey)
	cacheKey := "apikey:" + keyHash

	var cached domain.ApiKey
	if found, _ := cache.GetJSON(ctx, p.cache, cacheKey, &cached); found {
		return &cached, nil
	}

	key, err := p.keys.FindByHash(ctx, p.db, keyHash)
	if err != nil {
		return nil, domain.ErrInternal("lookup api key", err)
	}
	if key == nil || !icrypto.VerifyAPIKey(rawKey, key.Salt, key.VerificationHash) {
		return nil, domain.ErrUnauthenticated("invalid api key")
	}

	_ = cache.SetJSON(ctx, p.cache, cacheKey, key, time.Minute)
	return key, nil
}

func (p *Pipeline) touchAsync(keyID uuid.UUID) {
	now := time.Now()
	if last, ok := p.seen[keyID]; ok && now.Sub(last) < touchInterval {
		return
	}
	p.seen[keyID] = now
	go func() {
		_ = p.keys.TouchLastUsed(context.Background(), p.db, keyID)
	}()
}

func writeAuthError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*domain.AppError)
	if !ok {
		appErr = domain.ErrInternal("auth pipeline error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	_, _ = w.Write([]byte(`{"success":false,"error":{"code":"` + appErr.Code + `","message":"` + appErr.Message + `"}}`))
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ipAllowed(ip string, allowed []string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, entry := range allowed {
		if strings.Contains(entry, "/") {
			_, cidr, err := net.ParseCIDR(entry)
			if err == nil && cidr.Contains(parsed) {
				return true
			}
			continue
		}
		if net.ParseIP(entry) != nil && net.ParseIP(entry).Equal(parsed) {
			return true
		}
	}
	return false
}
