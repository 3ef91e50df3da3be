package reports

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/dq_backend/config"
	"bitbucket.org/mmdatafocus/dq_backend/utils"
)

const reportCachePrefix = "dq:report:"

func reportCacheEnabled() bool {
	v := strings.TrimSpace(os.Getenv("ENABLE_REPORT_CACHE"))
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes") || strings.EqualFold(v, "on")
}

func reportCacheTTL() time.Duration {
	// Env: REPORT_CACHE_TTL_SECONDS (default 600s)
	ttl := 600
	if v := strings.TrimSpace(os.Getenv("REPORT_CACHE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return time.Duration(ttl) * time.Second
}

func reportSlowMs() int64 {
	// Env: REPORT_SLOW_MS (default 500ms)
	ms := int64(500)
	if v := strings.TrimSpace(os.Getenv("REPORT_SLOW_MS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ms = n
		}
	}
	return ms
}

func logSlowReport(ctx context.Context, entityID int64, started time.Time, size int) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	log.Printf("slow_report entity_id=%d ms=%d bytes=%d correlation_id=%s", entityID, d.Milliseconds(), size, cid)
}

func reportCacheKey(entityID int64, version string) string {
	return fmt.Sprintf("%s%d:%s", reportCachePrefix, entityID, version)
}

// CachedEntityWorkbook renders the workbook for an entity. When the report
// cache is on and version is set, the rendered bytes are kept in Redis under
// that version; a new run produces a new version.
func CachedEntityWorkbook(ctx context.Context, entityID int64, version string, load func() (EntityReport, error)) ([]byte, error) {
	useCache := reportCacheEnabled() && version != ""
	key := reportCacheKey(entityID, version)
	if useCache {
		var cached []byte
		if ok, err := config.GetRedisObject(key, &cached); err == nil && ok && len(cached) > 0 {
			return cached, nil
		}
	}

	started := time.Now()
	r, err := load()
	if err != nil {
		return nil, err
	}
	data, err := BuildEntityWorkbook(r)
	if err != nil {
		return nil, err
	}
	logSlowReport(ctx, entityID, started, len(data))

	if useCache {
		if err := config.SetRedisObject(key, data, reportCacheTTL()); err != nil {
			log.Printf("report cache write failed key=%s: %v", key, err)
		}
	}
	return data, nil
}
