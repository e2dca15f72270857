package email

import (
	"errors"
	"fmt"
	"net/mail"
	"time"
)

// Config holds the SMTP sink configuration.
type Config struct {
	Host     string   `yaml:"smtp_host"`
	Port     int      `yaml:"smtp_port"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`

	// TLS is mandatory, opportunistic or none.
	TLS     string        `yaml:"tls,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

func (c *Config) defaults() {
	if c.Port == 0 {
		c.Port = 587
	}
	if c.TLS == "" {
		c.TLS = "opportunistic"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

func (c Config) validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("email: smtp_host is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("email: invalid smtp_port %d", c.Port))
	}
	if _, err := mail.ParseAddress(c.From); err != nil {
		errs = append(errs, fmt.Errorf("email: invalid from address %q: %w", c.From, err))
	}
	if len(c.To) == 0 {
		errs = append(errs, errors.New("email: at least one recipient is required"))
	}
	for _, to := range c.To {
		if _, err := mail.ParseAddress(to); err != nil {
			errs = append(errs, fmt.Errorf("email: invalid recipient %q: %w", to, err))
		}
	}
	if (c.Username == "") != (c.Password == "") {
		errs = append(errs, errors.New("email: username and password must be set together"))
	}
	switch c.TLS {
	case "mandatory", "opportunistic", "none":
	default:
		errs = append(errs, fmt.Errorf("email: invalid tls %q (must be mandatory, opportunistic or none)", c.TLS))
	}
	return errors.Join(errs...)
}
