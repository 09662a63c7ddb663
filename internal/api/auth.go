package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/lib/jwt"
	"github.com/IlyasAtabaev731/market/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Password string `json:"password" validate:"required,min=4,max=72"`
}

type AuthRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
}

func (s *APIServer) registerHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if !s.decode(w, r, &req) {
			return
		}

		user, err := s.registerUser(r.Context(), req.Username, req.Password, models.RoleUser)
		if err != nil {
			if errors.Is(err, storage.ErrUserExists) {
				writeError(w, http.StatusConflict, "username is already taken")
				return
			}
			writeError(w, http.StatusInternalServerError, "registration failed")
			return
		}

		writeJSON(w, http.StatusCreated, user)
	}
}

func (s *APIServer) registerUser(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	s.logger.Info("Register new user", slog.String("username", username))

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Failed to hash password", "error", err)
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(passHash),
		Role:         role,
		IsActive:     true,
	}
	if err := s.storage.SaveUser(ctx, user); err != nil {
		if !errors.Is(err, storage.ErrUserExists) {
			s.logger.Error("Failed to save user", "error", err)
		}
		return nil, err
	}

	return user, nil
}

func (s *APIServer) authHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AuthRequest
		if !s.decode(w, r, &req) {
			return
		}

		user, err := s.storage.GetUser(r.Context(), req.Username)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			s.logger.Error("Failed to get user", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if !user.IsActive {
			writeError(w, http.StatusForbidden, "account is deactivated")
			return
		}

		token, err := jwt.NewToken(user, string(s.jwtSecret), s.config.TokenTTL)
		if err != nil {
			s.logger.Error("Failed to sign token", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, AuthResponse{Token: token})
	}
}

type ProfileRequest struct {
	Bio string `json:"bio" validate:"max=500"`
}

func (s *APIServer) profileHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, currentUser(r.Context()))
	}
}

func (s *APIServer) updateProfileHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProfileRequest
		if !s.decode(w, r, &req) {
			return
		}

		user := currentUser(r.Context())
		if err := s.storage.UpdateBio(r.Context(), user.ID, req.Bio); err != nil {
			s.logger.Error("Failed to update bio", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update profile")
			return
		}
		user.Bio = req.Bio

		writeJSON(w, http.StatusOK, user)
	}
}

// usersHandler lists the other active users: transfer and private chat targets.
func (s *APIServer) usersHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := s.otherUsernames(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list users")
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"users": names})
	}
}

func (s *APIServer) otherUsernames(r *http.Request) ([]string, error) {
	users, err := s.storage.ListUsers(r.Context())
	if err != nil {
		s.logger.Error("Failed to list users", "error", err)
		return nil, err
	}

	me := currentUser(r.Context())
	names := make([]string, 0, len(users))
	for _, u := range users {
		if u.ID != me.ID && u.IsActive {
			names = append(names, u.Username)
		}
	}

	return names, nil
}

// EnsureAdmin creates the configured admin account when it does not exist yet.
func (s *APIServer) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.registerUser(ctx, username, password, models.RoleAdmin)
	if errors.Is(err, storage.ErrUserExists) {
		return nil
	}
	return err
}
