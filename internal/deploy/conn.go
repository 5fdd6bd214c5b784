package deploy

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jlaffaye/ftp"
)

// Conn is the subset of an FTP session the publisher uses.
type Conn interface {
	MakeDir(path string) error
	Stor(path string, r io.Reader) error
	Quit() error
}

// Dialer opens an authenticated session.
type Dialer func(ctx context.Context, creds Credentials) (Conn, error)

// FTPDialer dials real FTP servers, giving up after timeout.
func FTPDialer(timeout time.Duration) Dialer {
	return func(ctx context.Context, creds Credentials) (Conn, error) {
		conn, err := ftp.Dial(creds.HostPort(),
			ftp.DialWithContext(ctx),
			ftp.DialWithTimeout(timeout),
		)
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", creds.HostPort(), err)
		}

		if err := conn.Login(creds.Username, creds.Password); err != nil {
			_ = conn.Quit()
			return nil, fmt.Errorf("login to %s as %s: %w", creds.HostPort(), creds.Username, err)
		}
		return conn, nil
	}
}
