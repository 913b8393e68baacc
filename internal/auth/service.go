package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-mdm/meridian-mdm/internal/authz"
	"github.com/meridian-mdm/meridian-mdm/internal/platform/httpx"
	"github.com/meridian-mdm/meridian-mdm/internal/roles"
	"github.com/meridian-mdm/meridian-mdm/internal/shared"
	"github.com/meridian-mdm/meridian-mdm/internal/users"
)

// UserSource supplies accounts for authentication.
type UserSource interface {
	Get(ctx context.Context, id int64) (users.User, error)
	GetByEmail(ctx context.Context, email string) (users.User, string, error)
}

// RoleSource supplies the role aggregate behind an account.
type RoleSource interface {
	Get(ctx context.Context, id int64) (roles.Role, error)
}

// Identity is a resolved session: the account plus its authorization
// context.
type Identity struct {
	User  users.User
	Authz *authz.Context
}

// Service wraps authentication business rules.
type Service struct {
	userSource UserSource
	roleSource RoleSource
	tokens     *TokenStore
	versions   *VersionStore
}

// NewService constructs a new Service.
func NewService(userSource UserSource, roleSource RoleSource, tokens *TokenStore, versions *VersionStore) *Service {
	return &Service{userSource: userSource, roleSource: roleSource, tokens: tokens, versions: versions}
}

// Login validates credentials and issues a bearer token stamped with the
// user's current permission version. Unknown email, wrong password, and a
// deactivated account are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (users.User, string, error) {
	user, hash, err := s.userSource.GetByEmail(ctx, email)
	if err != nil {
		return users.User{}, "", shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return users.User{}, "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return users.User{}, "", shared.ErrInvalidCredentials
	}

	version, err := s.versions.Current(ctx, user.ID)
	if err != nil {
		return users.User{}, "", err
	}
	token, err := s.tokens.Issue(ctx, user.ID, version)
	if err != nil {
		return users.User{}, "", err
	}
	return user, token, nil
}

// Logout revokes a token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Resolve turns a bearer token into an identity. A token stamped with an
// outdated permission version yields ErrStalePermissions; the client must
// call Refresh before retrying.
func (s *Service) Resolve(ctx context.Context, token string) (Identity, error) {
	record, err := s.tokens.Lookup(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	version, err := s.versions.Current(ctx, record.UserID)
	if err != nil {
		return Identity{}, err
	}
	if record.Version != version {
		return Identity{}, shared.ErrStalePermissions
	}

	identity, err := s.resolveIdentity(ctx, record.UserID, version)
	if err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// Refresh re-resolves the identity against the live permission state and
// restamps the token, clearing staleness.
func (s *Service) Refresh(ctx context.Context, token string) (Identity, error) {
	record, err := s.tokens.Lookup(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	version, err := s.versions.Current(ctx, record.UserID)
	if err != nil {
		return Identity{}, err
	}
	if err := s.tokens.Restamp(ctx, token, version); err != nil {
		return Identity{}, err
	}
	return s.resolveIdentity(ctx, record.UserID, version)
}

func (s *Service) resolveIdentity(ctx context.Context, userID int64, version string) (Identity, error) {
	user, err := s.userSource.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return Identity{}, httpx.ErrUnauthorized
		}
		return Identity{}, err
	}
	if !user.IsActive {
		return Identity{}, httpx.ErrUnauthorized
	}

	var role *roles.Role
	if user.Role != nil {
		loaded, err := s.roleSource.Get(ctx, user.Role.ID)
		if err != nil && !errors.Is(err, httpx.ErrNotFound) {
			return Identity{}, err
		}
		if err == nil && loaded.IsActive {
			role = &loaded
		}
	}

	return Identity{
		User:  user,
		Authz: authz.NewContext(user.ToSubject(role), version),
	}, nil
}
