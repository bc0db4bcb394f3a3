package healthcheck

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// transport is swapped out in tests so the client trusts httptest certificates
var transport http.RoundTripper

func newClient(timeout time.Duration, disableTLSCheck bool) *http.Client {
	c := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}

	if disableTLSCheck {
		log.Warn().Msg("ignoring bad HTTPS certificates from server")
		c.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 -- doing this at user's option
			},
		}
	}

	return c
}

// CheckHealth calls the /health endpoint of the loginguard instance at host, which must be on localhost.
func CheckHealth(host string, timeout time.Duration, disableTLSCheck bool) error {
	log.Info().Str("host", host).Msg("starting health check")

	base, err := url.Parse(host)
	if err != nil {
		return fmt.Errorf("healthcheck: CheckHealth: invalid host: %w", err)
	}

	// only localhost so this can't be turned in to a way to probe other machines
	if strings.ToLower(base.Hostname()) != "localhost" && base.Hostname() != "127.0.0.1" {
		return fmt.Errorf("healthcheck: CheckHealth: can only check health on localhost")
	}

	req, err := http.NewRequest(http.MethodGet, base.JoinPath("health").String(), nil)
	if err != nil {
		return err
	}

	res, err := newClient(timeout, disableTLSCheck).Do(req) // #nosec G704 -- we limit this to localhost only
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Error().Str("host", host).Str("status", res.Status).Msg("bad status from server")
		return fmt.Errorf("healthcheck: CheckHealth: bad status from server: %s", res.Status)
	}

	return nil
}
