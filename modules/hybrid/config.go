package hybrid

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config describes one user session on one school server. Protocols can
// be switched off individually; at least one has to stay on.
type Config struct {
	Server     string `validate:"required"`
	School     string `validate:"required"`
	Identity   string `validate:"required"`
	ClientName string
	PreferREST bool
	EnableRPC  bool
	EnableREST bool
	EnableHTML bool
}

// DefaultClientName identifies this client in User-Agent and the classic
// authenticate call.
const DefaultClientName = "untisgo"

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("incomplete session config: %w", err)
	}
	if !c.EnableRPC && !c.EnableREST && !c.EnableHTML {
		return errors.New("at least one protocol must stay enabled")
	}

	return nil
}

// UserKey names the persisted state of this user on this server. All
// stores key by it.
func (c Config) UserKey() string {
	return c.Identity + "@" + c.School + "@" + c.Server
}

func (c Config) clientName() string {
	if c.ClientName != "" {
		return c.ClientName
	}

	return DefaultClientName
}
