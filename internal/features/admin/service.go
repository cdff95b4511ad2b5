// Package admin — service.go содержит логику аутентификации и управления сессиями.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/rewards-engine/internal/common"
	"serotonyl.ru/rewards-engine/internal/config"
)

// Store — операции репозитория, которые нужны сервису.
type Store interface {
	CreateSession(ctx context.Context, session *AdminSession) error
	GetSessionByToken(ctx context.Context, token string) (*AdminSession, error)
	DeactivateSession(ctx context.Context, token string) error
	UpdateActivity(ctx context.Context, sessionID int64) error
	LogAttempt(ctx context.Context, userID int64, success bool) error
	GetRecentAttempts(ctx context.Context, userID int64, period time.Duration) (int, error)
}

// Service управляет входом в админский API.
type Service struct {
	repo Store
	cfg  *config.Config
}

// NewService создаёт сервис админки.
func NewService(repo Store, cfg *config.Config) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// Login проверяет пароль администратора с использованием Argon2id и выдаёт токен.
// Включает защиту от brute-force: 3 неудачные попытки = блокировка на 1 час.
func (s *Service) Login(ctx context.Context, userID int64, password string) (*LoginResult, error) {
	attempts, err := s.repo.GetRecentAttempts(ctx, userID, attemptsWindow)
	if err != nil {
		return nil, fmt.Errorf("ошибка проверки попыток входа: %w", err)
	}
	if attempts >= maxFailedAttempts {
		log.WithField("user_id", userID).Warn("Вход в админку заблокирован: слишком много попыток")
		return nil, common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.cfg.AdminPasswordHash)

	if err := s.repo.LogAttempt(ctx, userID, match); err != nil {
		log.WithError(err).Error("Ошибка записи попытки входа")
	}

	if !match {
		log.WithField("user_id", userID).Warn("Неверный пароль администратора")
		return nil, common.ErrWrongPassword
	}

	session := &AdminSession{
		UserID:       userID,
		SessionToken: generateSecureToken(),
		ExpiresAt:    time.Now().Add(s.cfg.AdminSessionTTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	log.WithField("user_id", userID).Info("Администратор вошёл")
	return &LoginResult{Token: session.SessionToken, ExpiresAt: session.ExpiresAt}, nil
}

// Authenticate проверяет токен и продлевает last_activity.
func (s *Service) Authenticate(ctx context.Context, token string) (*AdminSession, error) {
	if token == "" {
		return nil, common.ErrSessionExpired
	}
	session, err := s.repo.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateActivity(ctx, session.ID); err != nil {
		log.WithError(err).Debug("Не удалось обновить активность сессии")
	}
	return session, nil
}

// Logout закрывает сессию.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.repo.DeactivateSession(ctx, token)
}

// --- Криптографические утилиты ---

// verifyArgon2id проверяет пароль по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравниваем в постоянном времени
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// Параметры Argon2id для новых хешей
const (
	hashMemory      uint32 = 64 * 1024 // 64 MB
	hashIterations  uint32 = 3
	hashParallelism uint8  = 2
	hashKeyLength   uint32 = 32
	hashSaltLength         = 16
)

// HashPassword создаёт хеш для ADMIN_PASSWORD_HASH в формате, который понимает verifyArgon2id.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("пароль не может быть пустым")
	}

	salt := make([]byte, hashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, hashIterations, hashMemory, hashParallelism, hashKeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, hashMemory, hashIterations, hashParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// generateSecureToken генерирует криптографически безопасный токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}
