package tx

import (
	"strconv"
	"strings"
	"time"

	"txkit/internal/core/apperror"
)

// Recognized configuration properties. Any other key is forwarded verbatim to
// the engine.
const (
	PropMinSize            = "min_size"
	PropMaxSize            = "max_size"
	PropMaxStatements      = "max_statements"
	PropTransactionTimeout = "transaction.timeout"
	PropTestSession        = "test-session"
	PropIdleTestPeriod     = "idle_test_period"
	PropURL                = "connection.url"
	PropUsername           = "connection.username"
	PropPassword           = "connection.password"
)

const (
	// MinViableMaxSize is the smallest pool accepted when a maximum is set.
	// Smaller pools stall under concurrent load: an outer transaction holding
	// the only connection starves every other caller.
	MinViableMaxSize = 2

	// DefaultIdleTestPeriod keeps idle connections alive below the usual
	// server-side wait timeouts.
	DefaultIdleTestPeriod = 30 * time.Minute
)

// Config holds the engine and transaction settings. Zero sizes mean "engine
// default".
type Config struct {
	URL      string
	Username string
	Password string

	MinSize       int32
	MaxSize       int32
	MaxStatements int32

	// TransactionTimeout bounds statements inside a read-write transaction.
	TransactionTimeout time.Duration
	IdleTestPeriod     time.Duration

	// TestSession disables pooling: every session dials its own connection.
	TestSession bool

	// Properties are passed to the engine as server runtime parameters.
	Properties map[string]string
}

// ParseConfig builds a normalized Config from a property bag.
func ParseConfig(props map[string]string) (Config, error) {
	cfg := Config{
		IdleTestPeriod: DefaultIdleTestPeriod,
		Properties:     make(map[string]string),
	}

	for key, value := range props {
		var err error
		switch key {
		case PropURL:
			cfg.URL = value
		case PropUsername:
			cfg.Username = value
		case PropPassword:
			cfg.Password = value
		case PropMinSize:
			cfg.MinSize, err = parseSize(key, value)
		case PropMaxSize:
			cfg.MaxSize, err = parseSize(key, value)
		case PropMaxStatements:
			cfg.MaxStatements, err = parseSize(key, value)
		case PropTransactionTimeout:
			cfg.TransactionTimeout, err = parseSeconds(key, value)
		case PropIdleTestPeriod:
			cfg.IdleTestPeriod, err = parseSeconds(key, value)
		case PropTestSession:
			cfg.TestSession, err = strconv.ParseBool(strings.TrimSpace(value))
			if err != nil {
				err = invalidProperty(key, value)
			}
		default:
			cfg.Properties[key] = value
		}
		if err != nil {
			return Config{}, err
		}
	}

	return cfg.Normalized(), nil
}

// Normalized applies the pool sizing clamps: a set maximum is floored to
// MinViableMaxSize, a set minimum never exceeds the maximum, and a set
// statement cache holds at least one statement per pooled connection.
// Without a maximum the minimum is dropped too, leaving both to the engine.
func (c Config) Normalized() Config {
	if c.MaxSize > 0 && c.MaxSize < MinViableMaxSize {
		c.MaxSize = MinViableMaxSize
	}
	if c.MinSize > c.MaxSize {
		if c.MaxSize > 0 {
			c.MinSize = c.MaxSize
		} else {
			c.MinSize = 0
		}
	}
	if c.MaxStatements > 0 && c.MaxStatements < c.MaxSize {
		c.MaxStatements = c.MaxSize
	}
	return c
}

func parseSize(key, value string) (int32, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
	if err != nil || n < 0 {
		return 0, invalidProperty(key, value)
	}
	return int32(n), nil
}

func parseSeconds(key, value string) (time.Duration, error) {
	n, err := parseSize(key, value)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func invalidProperty(key, value string) error {
	return apperror.NewConfiguration("malformed configuration property").
		WithDetail("property", key).
		WithDetail("value", value)
}
