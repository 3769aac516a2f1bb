// Package accounts implements the account-directory collaborator over the
// service configuration file: a static listing of configured mail accounts
// and their identities.
package accounts

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"rolo/pkg/rolo"
)

// Directory is an account listing loaded once from configuration.
type Directory struct {
	accounts []rolo.Account
}

// NewDirectory creates a directory over an explicit account list. The list is
// copied so later caller mutation does not leak into listings.
func NewDirectory(accounts []rolo.Account) *Directory {
	return &Directory{accounts: cloneAccounts(accounts)}
}

// Load reads the accounts section from the YAML config file at path. A
// missing file or missing section yields an empty directory, not an error.
func Load(path string) (*Directory, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return NewDirectory(nil), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return NewDirectory(nil), nil
		}
		return nil, fmt.Errorf("read accounts config %s: %w", path, err)
	}

	var parsed struct {
		Accounts []rolo.Account `mapstructure:"accounts"`
	}
	if err := v.Unmarshal(&parsed); err != nil {
		return nil, fmt.Errorf("parse accounts config %s: %w", path, err)
	}

	return NewDirectory(parsed.Accounts), nil
}

// List returns a deep copy of every configured account. Implements
// rolo.AccountDirectory.
func (d *Directory) List(ctx context.Context) ([]rolo.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	return cloneAccounts(d.accounts), nil
}

// cloneAccounts deep-copies an account list including identity slices.
func cloneAccounts(accounts []rolo.Account) []rolo.Account {
	cloned := make([]rolo.Account, len(accounts))
	for idx, account := range accounts {
		cloned[idx] = account
		cloned[idx].Identities = append([]rolo.Identity(nil), account.Identities...)
	}

	return cloned
}
