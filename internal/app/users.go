package app

import (
	"context"
	"errors"

	"github.com/dkeye/voicechat/internal/core"
	"github.com/dkeye/voicechat/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// UserDirectory registers and authenticates users. Password digests never
// leave this type.
type UserDirectory struct {
	Store core.UserStore
	Cost  int
}

func NewUserDirectory(store core.UserStore) *UserDirectory {
	return &UserDirectory{Store: store, Cost: bcrypt.DefaultCost}
}

func (d *UserDirectory) Register(ctx context.Context, username, password string) (*domain.User, error) {
	u, err := domain.NewUser(username)
	if err != nil {
		return nil, domain.Validation(err.Error())
	}
	if err := domain.ValidatePassword(password); err != nil {
		return nil, domain.Validation(err.Error())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.Cost)
	if err != nil {
		return nil, err
	}
	if err := d.Store.CreateUser(ctx, u, string(hash)); err != nil {
		return nil, err
	}
	log.Info().Str("module", "app.users").Str("user", string(u.ID)).Str("username", u.Username).Msg("registered user")
	return u, nil
}

// Authenticate returns domain.ErrUnauthorized for unknown names and wrong passwords alike.
func (d *UserDirectory) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	u, hash, err := d.Store.GetUserByName(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, domain.Unauthorized("invalid credentials")
	}
	return u, nil
}

func (d *UserDirectory) Resolve(ctx context.Context, id domain.UserID) (*domain.User, error) {
	if id == "" {
		return nil, domain.Unauthorized("no identity")
	}
	return d.Store.GetUser(ctx, id)
}

func (d *UserDirectory) List(ctx context.Context) ([]domain.User, error) {
	return d.Store.ListUsers(ctx)
}
