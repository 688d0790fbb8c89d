package types

import "fmt"

// CacheKind identifies one persisted cache document
type CacheKind string

const (
	CacheKindDirectory           CacheKind = "directory"
	CacheKindIdentity            CacheKind = "identity"
	CacheKindNotificationHistory CacheKind = "notification_history"
	CacheKindDisabledLedger      CacheKind = "disabled_ledger"
)

// AllCacheKinds returns all valid cache kinds
func AllCacheKinds() []CacheKind {
	return []CacheKind{
		CacheKindDirectory,
		CacheKindIdentity,
		CacheKindNotificationHistory,
		CacheKindDisabledLedger,
	}
}

// TimeBoundedCacheKinds returns the kinds that expire after the validity window
func TimeBoundedCacheKinds() []CacheKind {
	return []CacheKind{
		CacheKindDirectory,
		CacheKindIdentity,
	}
}

// IsValid checks if the cache kind is valid
func (k CacheKind) IsValid() bool {
	switch k {
	case CacheKindDirectory,
		CacheKindIdentity,
		CacheKindNotificationHistory,
		CacheKindDisabledLedger:
		return true
	default:
		return false
	}
}

// TimeBounded reports whether entries of this kind expire by age
func (k CacheKind) TimeBounded() bool {
	return k == CacheKindDirectory || k == CacheKindIdentity
}

// String returns the string representation of the cache kind
func (k CacheKind) String() string {
	return string(k)
}

// ParseCacheKind parses a string into a CacheKind
func ParseCacheKind(s string) (CacheKind, error) {
	kind := CacheKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid cache kind: %s", s)
	}
	return kind, nil
}
