package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "budgettracker/internal/errors"
	"budgettracker/internal/logger"
	"budgettracker/internal/models"
	"budgettracker/internal/uuid"
)

const minPasswordLength = 6

// LocalOptions configures a LocalProvider.
type LocalOptions struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// ReuseInterval is how long a rotated refresh token is still accepted.
	// Requests that raced on the same cookie all get a session.
	ReuseInterval time.Duration
	// SiteURL is used to build the confirmation link that is logged on sign-up.
	SiteURL string
}

// LocalProvider is a self-hosted identity service backed by the users table.
// Access and refresh tokens are HS256 JWTs. Each sign-in opens its own
// session, and refresh tokens rotate within that session on every use.
type LocalProvider struct {
	db            *gorm.DB
	secret        []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	reuseInterval time.Duration
	siteURL       string
	now           func() time.Time
}

// DefaultReuseInterval is the grace period for a just-rotated refresh token.
const DefaultReuseInterval = 10 * time.Second

// NewLocalProvider creates a LocalProvider.
func NewLocalProvider(db *gorm.DB, opts LocalOptions) *LocalProvider {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	if opts.ReuseInterval <= 0 {
		opts.ReuseInterval = DefaultReuseInterval
	}
	return &LocalProvider{
		db:            db,
		secret:        []byte(opts.Secret),
		accessTTL:     opts.AccessTTL,
		refreshTTL:    opts.RefreshTTL,
		reuseInterval: opts.ReuseInterval,
		siteURL:       strings.TrimRight(opts.SiteURL, "/"),
		now:           time.Now,
	}
}

// SignUp registers an unconfirmed user and issues a confirmation code.
func (p *LocalProvider) SignUp(ctx context.Context, email, password, fullName string) (*User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Password must be at least 6 characters")
	}

	var count int64
	if err := p.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	code, err := newConfirmationCode()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Email:            email,
		Password:         string(hashedPassword),
		FullName:         strings.TrimSpace(fullName),
		ConfirmationCode: &code,
	}
	if err := p.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, apperrors.Internal(err)
	}

	logger.Named("identity").Infow("confirmation link issued",
		"email", user.Email,
		"link", p.siteURL+"/auth/callback?code="+code,
	)
	return toUser(user), nil
}

// SignIn checks credentials and opens a session. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var user models.User
	err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.Internal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsConfirmed() {
		return nil, apperrors.ErrEmailNotConfirmed
	}
	return p.openSession(ctx, &user)
}

// Refresh rotates the refresh token within its session. A token that was
// rotated less than the reuse interval ago is accepted again as long as no
// token issued after it has been used. Any other replay revokes the session.
func (p *LocalProvider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := p.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnauthorized, err)
	}

	db := p.db.WithContext(ctx)
	var stored models.RefreshToken
	if err := db.Where("token_hash = ?", HashToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, apperrors.Internal(err)
	}
	if stored.UserID != claims.Subject {
		return nil, apperrors.ErrUnauthorized
	}

	rotated, err := p.rotate(ctx, &stored)
	if err != nil {
		return nil, err
	}
	if !rotated {
		if err := p.checkReuse(ctx, &stored); err != nil {
			return nil, err
		}
	}

	var user models.User
	if err := db.Where("id = ?", stored.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, apperrors.Internal(err)
	}
	return p.issueSession(ctx, &user, stored.SessionID, &stored.ID)
}

// rotate marks stored as used. It reports false when the token had already
// been rotated, by an earlier request or a concurrent one.
func (p *LocalProvider) rotate(ctx context.Context, stored *models.RefreshToken) (bool, error) {
	if stored.IsRotated() {
		return false, nil
	}

	now := p.now()
	res := p.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND rotated_at IS NULL", stored.ID).
		Update("rotated_at", now)
	if res.Error != nil {
		return false, apperrors.Internal(res.Error)
	}
	if res.RowsAffected == 1 {
		stored.RotatedAt = &now
		return true, nil
	}

	if err := p.db.WithContext(ctx).Where("id = ?", stored.ID).First(stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.ErrUnauthorized
		}
		return false, apperrors.Internal(err)
	}
	return false, nil
}

func (p *LocalProvider) checkReuse(ctx context.Context, stored *models.RefreshToken) error {
	if stored.RotatedAt != nil && p.now().Sub(*stored.RotatedAt) <= p.reuseInterval {
		var usedChildren int64
		err := p.db.WithContext(ctx).Model(&models.RefreshToken{}).
			Where("parent_id = ? AND rotated_at IS NOT NULL", stored.ID).
			Count(&usedChildren).Error
		if err != nil {
			return apperrors.Internal(err)
		}
		if usedChildren == 0 {
			return nil
		}
	}

	logger.Named("identity").Warnw("refresh token replayed, revoking session",
		"user_id", stored.UserID,
		"session_id", stored.SessionID,
	)
	if err := p.revokeSession(ctx, stored.SessionID); err != nil {
		return err
	}
	return apperrors.ErrUnauthorized
}

// revokeSession deletes every refresh token of a session.
func (p *LocalProvider) revokeSession(ctx context.Context, sessionID string) error {
	err := p.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&models.RefreshToken{}).Error
	if err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// GetUser resolves the owner of an access token.
func (p *LocalProvider) GetUser(ctx context.Context, accessToken string) (*User, error) {
	claims, err := p.parseToken(accessToken, tokenTypeAccess)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnauthorized, err)
	}

	var user models.User
	if err := p.db.WithContext(ctx).Where("id = ?", claims.Subject).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, apperrors.Internal(err)
	}
	return toUser(&user), nil
}

// ExchangeCode confirms the email the code was issued for and opens a
// session. The verifier is accepted for interface parity and ignored.
func (p *LocalProvider) ExchangeCode(ctx context.Context, code, _ string) (*Session, error) {
	if code == "" {
		return nil, apperrors.ErrInvalidCode
	}

	var user models.User
	if err := p.db.WithContext(ctx).Where("confirmation_code = ?", code).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCode
		}
		return nil, apperrors.Internal(err)
	}
	if err := p.confirm(ctx, &user); err != nil {
		return nil, err
	}
	return p.openSession(ctx, &user)
}

// ConfirmEmail marks the user with the given email as confirmed without a code.
func (p *LocalProvider) ConfirmEmail(ctx context.Context, email string) error {
	var user models.User
	if err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.WithMessage(apperrors.ErrNotFound, "User not found")
		}
		return apperrors.Internal(err)
	}
	if user.IsConfirmed() {
		return nil
	}
	return p.confirm(ctx, &user)
}

// ConfirmationCode returns the pending confirmation code for email.
func (p *LocalProvider) ConfirmationCode(ctx context.Context, email string) (string, error) {
	var user models.User
	if err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.WithMessage(apperrors.ErrNotFound, "User not found")
		}
		return "", apperrors.Internal(err)
	}
	if user.ConfirmationCode == nil {
		return "", apperrors.ErrInvalidCode
	}
	return *user.ConfirmationCode, nil
}

func (p *LocalProvider) confirm(ctx context.Context, user *models.User) error {
	now := p.now()
	err := p.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"email_confirmed_at": now,
		"confirmation_code":  nil,
	}).Error
	if err != nil {
		return apperrors.Internal(err)
	}
	user.EmailConfirmedAt = &now
	user.ConfirmationCode = nil
	return nil
}

// openSession starts a new session for user, independent of any sessions the
// user already has on other devices.
func (p *LocalProvider) openSession(ctx context.Context, user *models.User) (*Session, error) {
	now := p.now()
	err := p.db.WithContext(ctx).Model(user).Update("last_login_at", now).Error
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	user.LastLoginAt = &now

	err = p.db.WithContext(ctx).
		Where("user_id = ? AND expires_at < ?", user.ID, now).
		Delete(&models.RefreshToken{}).Error
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return p.issueSession(ctx, user, uuid.New(), nil)
}

func (p *LocalProvider) issueSession(ctx context.Context, user *models.User, sessionID string, parentID *string) (*Session, error) {
	accessToken, expiresAt, err := p.signToken(user.ID, user.Email, tokenTypeAccess, p.accessTTL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	refreshToken, refreshExpiresAt, err := p.signToken(user.ID, user.Email, tokenTypeRefresh, p.refreshTTL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	stored := &models.RefreshToken{
		UserID:    user.ID,
		SessionID: sessionID,
		ParentID:  parentID,
		TokenHash: HashToken(refreshToken),
		ExpiresAt: refreshExpiresAt,
	}
	if err := p.db.WithContext(ctx).Create(stored).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	return &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(p.accessTTL.Seconds()),
		ExpiresAt:    expiresAt.Unix(),
		User:         toUser(user),
	}, nil
}

func toUser(u *models.User) *User {
	return &User{
		ID:             u.ID,
		Email:          u.Email,
		FullName:       u.FullName,
		EmailConfirmed: u.IsConfirmed(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newConfirmationCode() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
