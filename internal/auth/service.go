package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/bootboard/bootboard/internal/shared"
)

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(subject string, role Role) (string, error)
}

// Service wraps signup and login rules.
type Service struct {
	repo   Repository
	tokens TokenIssuer
	cost   int
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens TokenIssuer) *Service {
	return &Service{repo: repo, tokens: tokens, cost: bcrypt.DefaultCost}
}

// maxPasswordBytes is the longest input bcrypt will hash.
const maxPasswordBytes = 72

// SignupInput carries the fields of a registration request.
type SignupInput struct {
	Username string
	Password string
	Nickname string
}

// Signup registers a USER identity. A taken username yields shared.ErrConflict.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Identity, error) {
	username := strings.TrimSpace(in.Username)
	if len(in.Password) > maxPasswordBytes {
		return nil, shared.NewValidationError(map[string]string{"Password": "must be at most 72 bytes"})
	}
	exists, err := s.repo.ExistsBySubject(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("auth: check username: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("username %q: %w", username, shared.ErrConflict)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.Save(ctx, Identity{
		Subject:      username,
		DisplayName:  strings.TrimSpace(in.Nickname),
		PasswordHash: string(hash),
		Role:         RoleUser,
	})
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	identity, err := s.repo.FindBySubject(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return identity, nil
}

// Login authenticates and issues an access token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	identity, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}
	return s.tokens.Issue(identity.Subject, identity.Role)
}
