package localidp

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/shule-app/shule/core"
)

var (
	resetSalt = []byte("shule.identity.local.reset")
	nowFunc   = time.Now // mockable

	ErrInvalidResetToken = errors.New("invalid token")
	ErrResetTokenExpired = errors.New("token expired")
)

// EncodeUID base64 encodes a user id for reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// makeResetToken generates a password reset token for usr. The token is
// bound to the password hash and last login, so it self-invalidates once
// used or once the user signs in again.
func makeResetToken(conf *core.Config, usr User) string {
	return makeTokenWithTimestamp(conf, usr, numDaysSince2001(nowFunc()))
}

// verifyResetToken checks a reset token for usr.
func verifyResetToken(conf *core.Config, usr User, token string) error {
	if token == "" {
		return ErrInvalidResetToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return ErrInvalidResetToken
	}

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(parts[0])
	if err != nil {
		return ErrInvalidResetToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return ErrInvalidResetToken
	}

	// check that the token has not been tampered with
	if subtle.ConstantTimeCompare([]byte(makeTokenWithTimestamp(conf, usr, ts)), []byte(token)) == 0 {
		return ErrInvalidResetToken
	}

	// check that the timestamp is within limit
	if (numDaysSince2001(time.Now()) - ts) > int(conf.PasswordResetTimeoutDelta/(24*time.Hour)) {
		return ErrResetTokenExpired
	}
	return nil
}

func makeTokenWithTimestamp(conf *core.Config, usr User, ts int) string {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.Itoa(ts)))
	return fmt.Sprintf("%s-%s", tsB32, sign(conf, hashValue(usr, ts)))
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func sign(conf *core.Config, val []byte) string {
	key := sha256.Sum256(append(resetSalt, conf.SecretKey...))
	h := hmac.New(sha256.New, key[:])
	h.Write(val)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func hashValue(usr User, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(usr.ID)
	val.Write(usr.PasswordHash)
	if !usr.LastLogin.IsZero() {
		val.WriteString(usr.LastLogin.String())
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}

// RequestPasswordReset emails a reset link to the account, if it exists.
func (p *Provider) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := p.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	p.sendPasswordResetMail(usr)
	return nil
}

func (p *Provider) sendPasswordResetMail(usr User) {
	if p.mailSvc == nil {
		return
	}
	p.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: usr.Email}},
		Subject: "Password Reset",
		TemplateData: map[string]string{
			"UID":   EncodeUID(usr),
			"Token": makeResetToken(p.conf, usr),
		},
		TextTemplate: "Hello,\n\nReset your {{ .AppName }} password at:\n" +
			"{{ .FrontendBaseURL }}/password-reset/confirm?uid={{ .Data.UID }}&token={{ .Data.Token }}\n\n" +
			"If you did not request this, you can ignore this email.\n",
	})
}

// ResetPassword sets a new password when uid/token check out.
func (p *Provider) ResetPassword(ctx context.Context, uid, token, password string) error {
	id, err := decodeUID(uid)
	if err != nil {
		return ErrInvalidResetToken
	}
	usr, err := p.repo.GetUserByID(ctx, id)
	if err != nil {
		return ErrInvalidResetToken
	}
	if err = verifyResetToken(p.conf, usr, token); err != nil {
		return err
	}
	if err = validatePassword(password, usr.Email); err != nil {
		return err
	}
	if err = usr.SetPassword(password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return p.repo.SetUserPassword(ctx, usr.ID, usr.PasswordHash)
}
