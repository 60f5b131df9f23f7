package api

import (
	"strings"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	JwtAlg  = "HS256"
	userKey = "user"
)

// Issuer mints and verifies HS256 bearer tokens whose subject is the user id.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) (*Issuer, error) {
	if secret == "" {
		return nil, errdef.New(errdef.KindValidation, "jwt secret is required")
	}
	return &Issuer{secret: []byte(secret), now: time.Now}, nil
}

// Mint signs a token for user. A zero ttl mints a token that never expires.
func (i *Issuer) Mint(user string, ttl time.Duration) (string, error) {
	if user == "" {
		return "", errdef.New(errdef.KindValidation, "user is required")
	}
	now := i.now()
	claims := &jwt.RegisteredClaims{
		Subject:  user,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", errdef.Wrap(errdef.KindInternal, err, "sign token")
	}
	return signed, nil
}

// Verify checks the signature and expiry of raw and returns its subject.
func (i *Issuer) Verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{JwtAlg}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return "", errdef.Wrap(errdef.KindAuthorization, err, "verify token")
	}
	if claims.Subject == "" {
		return "", errdef.New(errdef.KindAuthorization, "token has no subject")
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's user id on the context.
func (i *Issuer) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				return errdef.New(errdef.KindAuthorization, "missing bearer token")
			}
			user, err := i.Verify(strings.TrimSpace(token))
			if err != nil {
				return err
			}
			c.Set(userKey, user)
			return next(c)
		}
	}
}

func userFrom(c echo.Context) string {
	user, _ := c.Get(userKey).(string)
	return user
}
