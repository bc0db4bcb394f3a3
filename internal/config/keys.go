package config

const (
	KeyServerPort = "server.port"
	KeyDBKind     = "db.kind"
	KeyDBFile     = "db.file"

	KeyTLSEnabled  = "server.tls.enabled"
	KeyTLSCertFile = "server.tls.cert_file"
	KeyTLSKeyFile  = "server.tls.key_file"

	KeyDisablePrecis = "security.disable_precis"

	DefaultServerPort = 9000
)

const (
	KeyAttemptLimit      = "security.login_attempts.limit"
	KeyAttemptWindow     = "security.login_attempts.window"
	KeyAttemptMaxTracked = "security.login_attempts.max_tracked"
	KeyAttemptReaper     = "security.login_attempts.reaper"
)

const (
	KeyTrustedProxies = "security.trusted_proxies"
	KeyRealIPHeader   = "security.real_ip_header"
)

const (
	KeyDisableRehashOnLogin = "security.disable_rehash_on_login"
)
