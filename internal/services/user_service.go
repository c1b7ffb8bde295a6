package services

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "stonksnote/internal/errors"
	"stonksnote/internal/models"
	"stonksnote/internal/money"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
	maxDisplayLen   = 50
)

// userService handles user-related business logic.
type userService struct {
	db              *gorm.DB
	defaultCurrency string
	defaultGroups   []string
}

// NewUserService creates a new UserServicer. New users get defaultCurrency
// unless they pick one and are enrolled into defaultGroups.
func NewUserService(db *gorm.DB, defaultCurrency string, defaultGroups []string) UserServicer {
	if defaultCurrency == "" {
		defaultCurrency = "PHP"
	}
	return &userService{db: db, defaultCurrency: strings.ToUpper(defaultCurrency), defaultGroups: defaultGroups}
}

// displayFromEmail derives the default display name from the e-mail local part.
func displayFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if len(local) > maxDisplayLen {
		local = local[:maxDisplayLen]
	}
	return local
}

// CreateUser registers a new user
func (s *userService) CreateUser(email, password, firstName, lastName, currency string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email and password are required")
	}
	email = strings.ToLower(strings.TrimSpace(email))

	if currency == "" {
		currency = s.defaultCurrency
	}
	currency = strings.ToUpper(currency)
	if !money.IsCurrency(currency) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown currency "+currency)
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Email:     email,
		Password:  string(hashedPassword),
		FirstName: firstName,
		LastName:  lastName,
		Display:   displayFromEmail(email),
		Currency:  currency,
		IsActive:  true,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(user).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, txErr)
		}
		if len(s.defaultGroups) == 0 {
			return nil
		}
		var groups []models.Group
		if txErr := tx.Where("name IN ?", s.defaultGroups).Find(&groups).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, txErr)
		}
		if len(groups) == 0 {
			return nil
		}
		if txErr := tx.Model(user).Association("Groups").Append(&groups); txErr != nil {
			return apperrors.Wrap(apperrors.ErrServiceUnavailable, txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email
func (s *userService) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ? AND is_active = ?", strings.ToLower(email), true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return &user, nil
}

// VerifyPassword checks if the provided password matches the stored hash
func (s *userService) VerifyPassword(user *models.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	return err == nil
}

// AttemptLogin verifies credentials and tracks failed attempts. After
// maxFailedLogins consecutive failures the account is locked for
// lockoutDuration. Unknown e-mails and wrong passwords look the same.
func (s *userService) AttemptLogin(email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidCredentials, "Account temporarily locked, try again later")
	}

	if !s.VerifyPassword(user, password) {
		updates := map[string]any{"failed_login_attempts": user.FailedLoginAttempts + 1}
		if user.FailedLoginAttempts+1 >= maxFailedLogins {
			updates["locked_until"] = now.Add(lockoutDuration)
			updates["failed_login_attempts"] = 0
		}
		if err := s.db.Model(user).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
		}
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := s.db.Model(user).Updates(map[string]any{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login_at":         now,
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	user.LastLoginAt = &now
	return user, nil
}

// StoreRefreshTokenHash saves the hash of the latest refresh token.
func (s *userService) StoreRefreshTokenHash(userID string, tokenHash string) error {
	if err := s.db.Model(&models.User{}).Where("id = ?", userID).Update("refresh_token_hash", tokenHash).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return nil
}

// GetRefreshTokenHash returns the stored refresh token hash.
func (s *userService) GetRefreshTokenHash(userID string) (string, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return "", err
	}
	return user.RefreshTokenHash, nil
}

// UpdateProfile changes the display name and/or default currency.
func (s *userService) UpdateProfile(userID string, display, currency *string) (*models.User, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if display != nil {
		d := strings.TrimSpace(*display)
		if d == "" || len(d) > maxDisplayLen {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "display must be 1-50 characters")
		}
		updates["display"] = d
	}
	if currency != nil {
		c := strings.ToUpper(*currency)
		if !money.IsCurrency(c) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown currency "+c)
		}
		updates["currency"] = c
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return s.GetUserByID(userID)
}
