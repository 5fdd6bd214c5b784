package build

import (
	"fmt"
	"strings"

	"github.com/conneroisu/sitesmith/internal/errors"
	"github.com/conneroisu/sitesmith/internal/paths"
)

// Mode selects the transformation chain and output root of every stage.
// The zero value is unset and rejected by every consumer.
type Mode int

const (
	ModeUnset Mode = iota
	ModeDev
	ModeProd
)

// ParseMode parses "dev" or "prod" (case-insensitive). "development" and
// "production" are accepted as aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return ModeDev, nil
	case "prod", "production":
		return ModeProd, nil
	case "":
		return ModeUnset, errors.NewConfigError(errors.ErrCodeModeUnset, "build mode is not set, use dev or prod")
	default:
		return ModeUnset, errors.NewConfigError(errors.ErrCodeModeUnset, fmt.Sprintf("unknown build mode %q, use dev or prod", s))
	}
}

func (m Mode) String() string {
	switch m {
	case ModeDev:
		return "dev"
	case ModeProd:
		return "prod"
	default:
		return "unset"
	}
}

// Validate returns a configuration error unless the mode is dev or prod.
func (m Mode) Validate() error {
	if m == ModeDev || m == ModeProd {
		return nil
	}
	return errors.NewConfigError(errors.ErrCodeModeUnset, "build mode is not set, use dev or prod")
}

// Root returns the output root written in this mode.
func (m Mode) Root() paths.RootID {
	if m == ModeProd {
		return paths.RootProd
	}
	return paths.RootDev
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Type implements pflag.Value.
func (m *Mode) Type() string {
	return "mode"
}
