package shieldcache

import "fmt"

const (
	cacheStatusHit = "hit"
	cacheStatusFwd = "fwd"
)

// The cache did not contain a response that matched the request, or the
// network response was preferred over the cached one.
const fwdReasonMiss = "miss"

// CacheStatus describes how a response was produced, in the shape of the
// Cache-Status response header (RFC 9211).
type CacheStatus struct {
	status    string
	fwdReason string
	detail    string
	stored    bool
}

func (cs *CacheStatus) Hit() {
	cs.status = cacheStatusHit
}

func (cs *CacheStatus) Forward(reason string) {
	cs.status = cacheStatusFwd
	cs.fwdReason = reason
}

func (cs *CacheStatus) Stored() {
	cs.stored = true
}

func (cs *CacheStatus) Detail(detail string) {
	cs.detail = detail
}

func (cs *CacheStatus) IsHit() bool {
	return cs.status == cacheStatusHit
}

func (cs CacheStatus) String() string {
	status := fmt.Sprintf("Shield-Cache; %s", cs.status)
	if cs.status == cacheStatusFwd && cs.fwdReason != "" {
		status = fmt.Sprintf("%s=%s", status, cs.fwdReason)
	}
	if cs.stored {
		status = status + "; stored"
	}
	if cs.detail != "" {
		status = status + "; detail=" + cs.detail
	}
	return status
}
