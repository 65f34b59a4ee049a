// Package config parses engine open options and loads CLI configuration.
package config

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cast"
	"golang.org/x/crypto/pbkdf2"

	"github.com/satishbabariya/litesql/internal/core/dberr"
)

// Recognized engine option keys.
const (
	KeyEncryptionKey = "encryption_key"
	KeyAuthToken     = "auth_token"
	KeySyncURL       = "sync_url"
	KeyBusyTimeoutMS = "busy_timeout_ms"
)

// KeyLength is the size of a derived encryption key.
const KeyLength = 32

// KeySalt is the fixed PBKDF2 salt for keys that are not already KeyLength bytes.
var KeySalt = []byte("litesql-encryption-key-v1")

// KeyDerivationIterations is the PBKDF2 iteration count.
const KeyDerivationIterations = 100000

var syncSchemes = map[string]bool{
	"libsql": true,
	"https":  true,
	"http":   true,
	"wss":    true,
	"ws":     true,
}

// Options are the recognized engine open options.
type Options struct {
	// EncryptionKey enables at-rest encryption. Empty means plaintext.
	EncryptionKey []byte

	// AuthToken authenticates against SyncURL.
	AuthToken string

	// SyncURL is the remote endpoint of a replica.
	SyncURL string

	// BusyTimeout is how long the engine waits on a lock before reporting busy.
	// Zero keeps the engine default.
	BusyTimeout time.Duration
}

// Remote reports whether the options describe a remote replica.
func (o Options) Remote() bool {
	return o.SyncURL != ""
}

// DerivedKey returns the encryption key to hand the engine. Keys that are exactly
// KeyLength bytes are used as is; anything else is stretched with PBKDF2-SHA256.
func (o Options) DerivedKey() []byte {
	if len(o.EncryptionKey) == 0 {
		return nil
	}
	if len(o.EncryptionKey) == KeyLength {
		return append([]byte(nil), o.EncryptionKey...)
	}
	return pbkdf2.Key(o.EncryptionKey, KeySalt, KeyDerivationIterations, KeyLength, sha256.New)
}

// ParseOptions validates a raw option map. Unknown keys and malformed values fail with a
// ConfigurationError. Values may be strings, as they arrive from environment variables.
func ParseOptions(raw map[string]interface{}) (Options, error) {
	var opts Options

	var unknown []string
	for key := range raw {
		switch key {
		case KeyEncryptionKey, KeyAuthToken, KeySyncURL, KeyBusyTimeoutMS:
		default:
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Options{}, dberr.NewConfigurationError("unsupported option(s): %s", strings.Join(unknown, ", "))
	}

	if v, ok := raw[KeyEncryptionKey]; ok && v != nil {
		switch key := v.(type) {
		case []byte:
			opts.EncryptionKey = append([]byte(nil), key...)
		case string:
			opts.EncryptionKey = []byte(key)
		default:
			return Options{}, dberr.NewConfigurationError("%s must be bytes or a string, got %T", KeyEncryptionKey, v)
		}
		if len(opts.EncryptionKey) == 0 {
			return Options{}, dberr.NewConfigurationError("%s must not be empty", KeyEncryptionKey)
		}
	}

	if v, ok := raw[KeyAuthToken]; ok && v != nil {
		token, err := cast.ToStringE(v)
		if err != nil {
			return Options{}, dberr.NewConfigurationError("%s: %v", KeyAuthToken, err).WithCause(err)
		}
		if err := ValidateAuthToken(token, time.Now()); err != nil {
			return Options{}, err
		}
		opts.AuthToken = token
	}

	if v, ok := raw[KeySyncURL]; ok && v != nil {
		s, err := cast.ToStringE(v)
		if err != nil {
			return Options{}, dberr.NewConfigurationError("%s: %v", KeySyncURL, err).WithCause(err)
		}
		if err := validateSyncURL(s); err != nil {
			return Options{}, err
		}
		opts.SyncURL = s
	}

	if v, ok := raw[KeyBusyTimeoutMS]; ok && v != nil {
		ms, err := parseMillis(v)
		if err != nil {
			return Options{}, dberr.NewConfigurationError("%s must be an integer: %v", KeyBusyTimeoutMS, err).WithCause(err)
		}
		if ms < 0 {
			return Options{}, dberr.NewConfigurationError("%s must not be negative, got %d", KeyBusyTimeoutMS, ms)
		}
		opts.BusyTimeout = time.Duration(ms) * time.Millisecond
	}

	if opts.AuthToken != "" && opts.SyncURL == "" {
		return Options{}, dberr.NewConfigurationError("%s requires %s", KeyAuthToken, KeySyncURL)
	}

	return opts, nil
}

// parseMillis reads strings as base 10, so "010" is 10 rather than an octal 8. Other
// types go through cast.
func parseMillis(v interface{}) (int64, error) {
	if s, ok := v.(string); ok {
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
	return cast.ToInt64E(v)
}

// ValidateAuthToken checks that token is a well-formed JWT that has not expired at now.
// The signature is not verified; that is the remote endpoint's job.
func ValidateAuthToken(token string, now time.Time) error {
	if strings.TrimSpace(token) == "" {
		return dberr.NewConfigurationError("%s must not be empty", KeyAuthToken)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return dberr.NewConfigurationError("%s is not a valid token: %v", KeyAuthToken, err).WithCause(err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return dberr.NewConfigurationError("%s has a malformed exp claim: %v", KeyAuthToken, err).WithCause(err)
	}
	if exp != nil && !now.Before(exp.Time) {
		return dberr.NewConfigurationError("%s expired at %s", KeyAuthToken, exp.Time.UTC().Format(time.RFC3339))
	}
	return nil
}

func validateSyncURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return dberr.NewConfigurationError("%s is not a valid URL: %v", KeySyncURL, err).WithCause(err)
	}
	if !syncSchemes[strings.ToLower(u.Scheme)] || u.Host == "" {
		return dberr.NewConfigurationError("%s must be an absolute libsql, http(s) or ws(s) URL, got %q", KeySyncURL, s)
	}
	return nil
}

// String renders the options with secrets redacted.
func (o Options) String() string {
	parts := make([]string, 0, 4)
	if len(o.EncryptionKey) > 0 {
		parts = append(parts, KeyEncryptionKey+"=<redacted>")
	}
	if o.AuthToken != "" {
		parts = append(parts, KeyAuthToken+"=<redacted>")
	}
	if o.SyncURL != "" {
		parts = append(parts, fmt.Sprintf("%s=%s", KeySyncURL, o.SyncURL))
	}
	if o.BusyTimeout > 0 {
		parts = append(parts, fmt.Sprintf("%s=%d", KeyBusyTimeoutMS, o.BusyTimeout.Milliseconds()))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
