package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/itchan-dev/usuarios/internal/domain"
	internal_errors "github.com/itchan-dev/usuarios/internal/errors"
	"github.com/itchan-dev/usuarios/internal/logger"
	"github.com/itchan-dev/usuarios/internal/utils"
	"github.com/itchan-dev/usuarios/internal/utils/hasher"
)

const recoverySubject = "Recuperación de contraseña"

type AuthService interface {
	Register(ctx context.Context, name string, creds domain.Credentials) (domain.UserId, error)
	Login(ctx context.Context, creds domain.Credentials) (string, error)
	Recover(ctx context.Context, email domain.Email) error
	Users(ctx context.Context) ([]domain.User, error)
	User(ctx context.Context, id domain.UserId) (domain.User, error)
}

type AuthStorage interface {
	SaveUser(ctx context.Context, user domain.User) error
	User(ctx context.Context, email domain.Email) (domain.User, error)
	UserById(ctx context.Context, id domain.UserId) (domain.User, error)
	UpdatePassword(ctx context.Context, id domain.UserId, passHash string) error
	Users(ctx context.Context) ([]domain.User, error)
}

type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, storedHash string) bool
}

type Email interface {
	Send(ctx context.Context, recipientEmail, subject, body string) error
}

type Jwt interface {
	NewToken(userId domain.UserId) (string, error)
}

type Auth struct {
	storage AuthStorage
	hasher  Hasher
	email   Email
	jwt     Jwt

	newSecret func() (string, error)
	newId     func() string
	now       func() time.Time
}

func NewAuth(storage AuthStorage, hasher Hasher, email Email, jwt Jwt) *Auth {
	return &Auth{
		storage:   storage,
		hasher:    hasher,
		email:     email,
		jwt:       jwt,
		newSecret: utils.GenerateTemporarySecret,
		newId:     uuid.NewString,
		now:       time.Now,
	}
}

// Register hashes the password and stores a new user. Rejections by the
// directory (duplicate email, invalid fields) come back as 400 errors.
func (a *Auth) Register(ctx context.Context, name string, creds domain.Credentials) (domain.UserId, error) {
	email := utils.NormalizeEmail(creds.Email)

	passHash, err := a.hash(creds.Password)
	if err != nil {
		logger.Log.Error("failed to hash password", "email", email, "error", err)
		return "", err
	}

	user := domain.User{
		Id:        a.newId(),
		Name:      utils.SanitizeName(name),
		Email:     email,
		PassHash:  passHash,
		CreatedAt: a.now().UTC(),
	}
	if err := a.storage.SaveUser(ctx, user); err != nil {
		return "", err
	}

	logger.Log.Info("user registered", "user_id", user.Id)
	return user.Id, nil
}

// Login checks the password of the user with the given email and returns a
// session token. Unknown email is 404, wrong password is 401.
func (a *Auth) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	email := utils.NormalizeEmail(creds.Email)

	user, err := a.storage.User(ctx, email)
	if err != nil {
		return "", err
	}

	if !a.hasher.Verify(creds.Password, user.PassHash) {
		logger.Log.Info("password verification failed", "user_id", user.Id)
		return "", internal_errors.Unauthorized("Wrong password")
	}

	token, err := a.jwt.NewToken(user.Id)
	if err != nil {
		logger.Log.Error("failed to create jwt token", "user_id", user.Id, "error", err)
		return "", err
	}
	return token, nil
}

// Recover replaces the password of the user with a temporary secret and mails
// it to them. The new hash is written first; if the mail can't be sent the
// previous hash is restored, so the account is never left with a password
// its owner never received.
func (a *Auth) Recover(ctx context.Context, email domain.Email) error {
	email = utils.NormalizeEmail(email)

	user, err := a.storage.User(ctx, email)
	if err != nil {
		return err
	}

	secret, err := a.newSecret()
	if err != nil {
		logger.Log.Error("failed to generate temporary secret", "error", err)
		return err
	}
	newHash, err := a.hasher.Hash(secret)
	if err != nil {
		logger.Log.Error("failed to hash temporary secret", "error", err)
		return err
	}

	if err := a.storage.UpdatePassword(ctx, user.Id, newHash); err != nil {
		return err
	}

	if err := a.email.Send(ctx, email, recoverySubject, recoveryBody(secret)); err != nil {
		logger.Log.Error("failed to send recovery email, restoring previous password", "user_id", user.Id, "error", err)
		// ctx may be the reason the send failed; the revert gets its own deadline.
		revertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if revertErr := a.storage.UpdatePassword(revertCtx, user.Id, user.PassHash); revertErr != nil {
			logger.Log.Error("failed to restore previous password", "user_id", user.Id, "error", revertErr)
			return errors.Join(fmt.Errorf("send recovery email: %w", err), fmt.Errorf("restore password: %w", revertErr))
		}
		return fmt.Errorf("send recovery email: %w", err)
	}

	logger.Log.Info("password recovered", "user_id", user.Id)
	return nil
}

func recoveryBody(secret string) string {
	return fmt.Sprintf("Tu nueva contraseña es: `%s`\n\nSi no solicitaste este cambio, contacta con soporte.\n", secret)
}

// Users lists every account without password hashes.
func (a *Auth) Users(ctx context.Context) ([]domain.User, error) {
	users, err := a.storage.Users(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].PassHash = ""
	}
	return users, nil
}

func (a *Auth) User(ctx context.Context, id domain.UserId) (domain.User, error) {
	user, err := a.storage.UserById(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	user.PassHash = ""
	return user, nil
}

func (a *Auth) hash(password string) (string, error) {
	passHash, err := a.hasher.Hash(password)
	if errors.Is(err, hasher.ErrTooLong) {
		return "", internal_errors.ValidationOrConflict("Invalid password", "password must be at most 72 bytes")
	}
	return passHash, err
}
