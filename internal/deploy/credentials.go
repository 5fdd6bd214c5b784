// Package deploy publishes the prod output tree to a remote FTP host.
package deploy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/conneroisu/sitesmith/internal/errors"
)

const redacted = "[REDACTED]"

// Credentials identify the FTP account used by deploy. They are read at
// deploy time and never logged in clear text.
type Credentials struct {
	Address  string `json:"address"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// UnmarshalJSON accepts the historical "adress" spelling of the address key.
func (c *Credentials) UnmarshalJSON(data []byte) error {
	var raw struct {
		Address  string `json:"address"`
		Adress   string `json:"adress"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Address = raw.Address
	if c.Address == "" {
		c.Address = raw.Adress
	}
	c.Username = raw.Username
	c.Password = raw.Password
	return nil
}

// LoadCredentials reads credentials from a JSON file.
func LoadCredentials(path string) (Credentials, error) {
	var creds Credentials

	data, err := os.ReadFile(path)
	if err != nil {
		return creds, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeCredentials,
			fmt.Sprintf("failed to read deploy credentials %s", path))
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, errors.Wrap(err, errors.ErrorTypeConfig, errors.ErrCodeCredentials,
			fmt.Sprintf("deploy credentials %s are not valid JSON", path))
	}
	if err := creds.Validate(); err != nil {
		return creds, err
	}
	return creds, nil
}

// Validate checks that an address and user name are present.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "username")
	}
	if len(missing) > 0 {
		return errors.NewConfigError(errors.ErrCodeCredentials,
			"deploy credentials missing "+strings.Join(missing, ", "))
	}
	return nil
}

// HostPort returns the address with the default FTP port when none is given.
func (c Credentials) HostPort() string {
	addr := strings.TrimSpace(c.Address)
	addr = strings.TrimPrefix(addr, "ftp://")
	addr = strings.TrimSuffix(addr, "/")
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(strings.Trim(addr, "[]"), "21")
}

func (c Credentials) String() string {
	return fmt.Sprintf("%s@%s (password %s)", c.Username, c.Address, redacted)
}

// LogValue keeps the password out of structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("address", c.Address),
		slog.String("username", c.Username),
		slog.String("password", redacted),
	)
}
