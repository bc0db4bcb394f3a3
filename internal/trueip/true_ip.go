package trueip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/config"
)

// Resolver works out the address a request really came from. Forwarding headers are only believed when the
// connection comes from a trusted proxy.
type Resolver struct {
	lock    sync.RWMutex
	header  string
	trusted []netip.Prefix
}

func NewResolver(header string, trustedProxies []string) *Resolver {
	r := &Resolver{}
	r.update(header, trustedProxies)
	return r
}

func NewResolverFromConfig() *Resolver {
	r := &Resolver{}
	r.reloadFromConfig(fsnotify.Event{})

	config.OnChange(r.reloadFromConfig)

	return r
}

func (r *Resolver) reloadFromConfig(_ fsnotify.Event) {
	config.Lock.RLock()
	header := viper.GetString(config.KeyRealIPHeader)
	trusted := viper.GetStringSlice(config.KeyTrustedProxies)
	config.Lock.RUnlock()

	r.update(header, trusted)
}

func parseTrusted(raw []string) []netip.Prefix {
	var ret []netip.Prefix
	for _, curr := range raw {
		if prefix, err := netip.ParsePrefix(curr); err == nil {
			ret = append(ret, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(curr)
		if err != nil {
			log.Warn().Str("input", curr).Msg("could not parse trusted proxy as CIDR or IP")
			continue
		}
		ret = append(ret, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}

	return ret
}

func (r *Resolver) update(header string, trustedProxies []string) {
	trusted := parseTrusted(trustedProxies)

	r.lock.Lock()
	defer r.lock.Unlock()

	r.header = header
	r.trusted = trusted

	if len(trusted) == 0 {
		log.Warn().Msg("no trusted proxies configured; forwarding headers will be ignored")
	} else {
		log.Info().Int("trusted_proxy_count", len(trusted)).Str("real_ip_header", header).Msg("loaded trusted proxies")
	}
}

func (r *Resolver) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, curr := range r.trusted {
		if curr.Contains(addr) {
			return true
		}
	}

	return false
}

// lastForwardedFor returns the last X-Forwarded-For entry, the only one our proxy wrote.
func lastForwardedFor(req *http.Request) string {
	headers := req.Header.Values("X-Forwarded-For")
	if len(headers) == 0 {
		return ""
	}

	parts := strings.Split(headers[len(headers)-1], ",")
	return strings.TrimSpace(parts[len(parts)-1])
}

// Find returns the client address for req. A nil Resolver trusts nobody.
func (r *Resolver) Find(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		log.Warn().Str("remote_addr", req.RemoteAddr).Err(err).Msg("could not find remote address")
		return req.RemoteAddr
	}

	if r == nil {
		return host
	}

	remote, err := netip.ParseAddr(host)
	if err != nil {
		return host
	}

	r.lock.RLock()
	defer r.lock.RUnlock()

	if !r.isTrusted(remote) {
		return host
	}

	if r.header != "" {
		if val := req.Header.Get(r.header); val != "" {
			return val
		}
		log.Warn().Str("real_ip_header", r.header).Msg("real ip header is set, but that header isn't in the request")
	}

	if fwd := lastForwardedFor(req); fwd != "" {
		return fwd
	}

	return host
}
