package memory

import (
	"strings"
	"time"

	"parcel-constraints-be/pkg/rdppf"

	"github.com/patrickmn/go-cache"
)

// ExtractRepository keeps recently fetched legal extracts so repeated
// analyses of the same parcel do not hit the upstream service again.
type ExtractRepository struct {
	cache *cache.Cache
}

// NewExtractRepository creates a cache whose entries live for ttl and are
// purged every 10 minutes.
func NewExtractRepository(ttl time.Duration) *ExtractRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ExtractRepository{
		cache: cache.New(ttl, 10*time.Minute),
	}
}

func extractKey(municipality, parcel string) string {
	return strings.ToLower(strings.TrimSpace(municipality)) + "|" + strings.TrimSpace(parcel)
}

func (r *ExtractRepository) Save(municipality, parcel string, ext *rdppf.Extract) {
	r.cache.Set(extractKey(municipality, parcel), ext, cache.DefaultExpiration)
}

func (r *ExtractRepository) Get(municipality, parcel string) (*rdppf.Extract, bool) {
	if x, found := r.cache.Get(extractKey(municipality, parcel)); found {
		return x.(*rdppf.Extract), true
	}
	return nil, false
}

func (r *ExtractRepository) Delete(municipality, parcel string) {
	r.cache.Delete(extractKey(municipality, parcel))
}

func (r *ExtractRepository) Flush() {
	r.cache.Flush()
}

func (r *ExtractRepository) Count() int {
	return r.cache.ItemCount()
}
