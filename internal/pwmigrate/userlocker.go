package pwmigrate

import (
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// rehashLocks holds one try-lock per user id so a burst of logins only rehashes once
var rehashLocks = ttlcache.New[string, *atomic.Bool](
	ttlcache.WithTTL[string, *atomic.Bool](5*time.Minute),
	ttlcache.WithLoader[string, *atomic.Bool](ttlcache.LoaderFunc[string, *atomic.Bool](
		func(c *ttlcache.Cache[string, *atomic.Bool], id string) *ttlcache.Item[string, *atomic.Bool] {
			return c.Set(id, &atomic.Bool{}, ttlcache.DefaultTTL)
		},
	)),
)

func tryLockUser(id string) bool {
	return rehashLocks.Get(id).Value().CompareAndSwap(false, true)
}

func unlockUser(id string) {
	rehashLocks.Get(id).Value().Store(false)
}
