package database

import (
	"fmt"
	"net/url"

	"github.com/valterebelo/polymarket-crypto-tools/internal/config"
)

// connString renders cfg as a pgx-compatible postgres URL. Credential
// escaping goes through net/url, so passwords may carry any character.
// The ssl_mode default belongs to config; an empty value here simply
// omits the parameter and leaves the choice to the driver.
func connString(cfg config.DBConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   cfg.Name,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = "sslmode=" + cfg.SSLMode
	}
	return u.String()
}
