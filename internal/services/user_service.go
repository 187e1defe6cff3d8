package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"social-chat/internal/cache"
	"social-chat/internal/models"
	"social-chat/internal/repositories/postgres"
	apperrors "social-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	minSearchLength = 2
	searchLimit     = 20
)

// UserService is the read side of the user directory plus development
// register/login for clients without an identity provider.
type UserService struct {
	repo      *postgres.UserRepository
	cache     cache.Cache
	cacheTTL  time.Duration
	jwtSecret string
	jwtTTL    time.Duration
}

func NewUserService(repo *postgres.UserRepository, c cache.Cache, cacheTTL time.Duration, jwtSecret string, jwtTTL time.Duration) *UserService {
	return &UserService{
		repo:      repo,
		cache:     c,
		cacheTTL:  cacheTTL,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
	}
}

func userCacheKey(id uint) string {
	return "user:" + strconv.FormatUint(uint64(id), 10)
}

// generateJWT creates a new JWT token for the user
func (s *UserService) generateJWT(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"email":    user.Email,
		"username": user.Username,
		"exp":      now.Add(s.jwtTTL).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.UserResponse, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" || strings.TrimSpace(req.Username) == "" {
		return nil, apperrors.InvalidArg("username, email and password are required")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: string(hashedPassword),
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		return nil, err
	}

	slog.Info("User registered", "userID", user.ID, "email", user.Email)
	resp := user.ToResponse()
	return &resp, nil
}

func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.LoginResponse{Token: token, User: user.ToResponse()}, nil
}

// FindByID reads through the cache.
func (s *UserService) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var cached models.User
	if ok, err := s.cache.Get(ctx, userCacheKey(id), &cached); err != nil {
		slog.Warn("User cache read failed", "userID", id, "error", err)
	} else if ok {
		return &cached, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, userCacheKey(id), user, s.cacheTTL); err != nil {
		slog.Warn("User cache write failed", "userID", id, "error", err)
	}
	return user, nil
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserService) FindByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	return s.repo.FindByIDs(ctx, ids)
}

// Search needs at least two characters and never returns the caller.
func (s *UserService) Search(ctx context.Context, userID uint, query string) ([]models.UserResponse, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minSearchLength {
		return nil, apperrors.InvalidArg("search query must be at least 2 characters")
	}

	users, err := s.repo.Search(ctx, query, userID, searchLimit)
	if err != nil {
		return nil, err
	}

	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].ToResponse())
	}
	return out, nil
}

// ParseToken validates an HS256 token and returns its user id.
func (s *UserService) ParseToken(tokenString string) (uint, error) {
	return ParseToken(tokenString, s.jwtSecret)
}

func ParseToken(tokenString, secret string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, apperrors.Unauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, apperrors.Unauthorized("invalid token claims")
	}
	raw, ok := claims["user_id"].(float64)
	if !ok || raw <= 0 {
		return 0, apperrors.Unauthorized("invalid user ID in token")
	}
	return uint(raw), nil
}
