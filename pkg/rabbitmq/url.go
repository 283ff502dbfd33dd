package rabbitmq

import (
	"errors"
	"net/url"
	"strings"
)

var ErrInvalidScheme = errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")

// SanitizeURL strips quotes and stray characters copied in from dashboards before the
// scheme, and rejects anything that is not an AMQP URL.
func SanitizeURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", ErrInvalidScheme
	}
	return clean, nil
}
