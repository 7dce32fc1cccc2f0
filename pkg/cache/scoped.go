package cache

// ScopedKeyer prefixes every key of an inner Keyer. The server uses it to
// keep its entries apart from other users of a shared Redis.
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "ancsummary:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer means
// [DefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// SummaryKey returns the prefixed summary key.
func (k *ScopedKeyer) SummaryKey(inputHash string, opts SummaryKeyOpts) string {
	return k.prefix + k.inner.SummaryKey(inputHash, opts)
}

// ArtifactKey returns the prefixed artifact key.
func (k *ScopedKeyer) ArtifactKey(summaryKey, format string) string {
	return k.prefix + k.inner.ArtifactKey(summaryKey, format)
}
