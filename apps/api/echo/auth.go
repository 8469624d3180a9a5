package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/user"
)

const (
	msgInvalidToken  = "invalid or expired jwt"
	contextClaimsKey = "claims"
	contextTokenKey  = "token"
	bearerPrefix     = "Bearer "
)

var (
	errMissingToken         = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errInvalidToken         = echo.NewHTTPError(http.StatusUnauthorized, msgInvalidToken)
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "invalid email or password")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Role         string `json:"role"`
}

func (c Claims) Actor() user.Actor {
	return user.Actor{ID: c.Subject, Role: c.Role}
}

// TokenIssuer signs and parses the HS256 access tokens of the API.
type TokenIssuer struct {
	key             []byte
	issuer          string
	expiration      time.Duration
	refreshDuration time.Duration
}

func NewTokenIssuer(conf *core.Config) *TokenIssuer {
	return &TokenIssuer{
		key:             []byte(conf.SecretKey),
		issuer:          conf.AppName,
		expiration:      conf.Server.JWTExpirationDelta,
		refreshDuration: conf.Server.JWTRefreshExpirationDelta,
	}
}

// Claims returns fresh claims for usr. origIat keeps the original issue time across refreshes.
func (ti *TokenIssuer) Claims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   usr.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Role:         usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (ti *TokenIssuer) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (ti *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.key, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// authMiddleware authenticates the Bearer token of the request.
// It refuses revoked tokens and inactive accounts, and makes the stored user the actor of the request context.
func authMiddleware(ti *TokenIssuer, svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, bearerPrefix) || len(auth) == len(bearerPrefix) {
				return errMissingToken
			}
			tokenStr := auth[len(bearerPrefix):]

			claims, err := ti.Parse(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, msgInvalidToken).SetInternal(err)
			}
			revoked, err := svc.IsTokenRevoked(ctx.Request().Context(), tokenStr)
			if err != nil {
				return errors.Wrap(err, "checking revoked token")
			}
			if revoked {
				return errInvalidToken
			}

			// the stored account decides status and role, not the token
			usr, err := svc.GetActiveByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				switch errors.Cause(err) {
				case user.ErrNotFound:
					return errUnauthorized
				case user.ErrAccountInactive:
					return errAccountDeactivated
				}
				return errors.Wrap(err, "getting token user")
			}
			claims.Role = usr.Role

			ctx.Set(contextClaimsKey, *claims)
			ctx.Set(contextTokenKey, tokenStr)
			req := ctx.Request()
			ctx.SetRequest(req.WithContext(user.ContextWithActor(req.Context(), usr.Actor())))
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, errUnauthorized
}

func authenticate(ctx echo.Context, ti *TokenIssuer, svc *user.Service, email, pwd string) (string, error) {
	usr, err := svc.Authenticate(ctx.Request().Context(), email, pwd)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrAuthenticationFailed:
			return "", errAuthenticationFailed
		case user.ErrAccountInactive:
			return "", errAccountDeactivated
		}
		return "", errors.Wrap(err, "authenticating")
	}
	return ti.GenerateToken(ti.Claims(usr))
}

func refreshToken(ctx echo.Context, ti *TokenIssuer, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}

	usr, err := svc.GetActiveByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrAccountInactive {
			return "", errAccountDeactivated
		}
		if errors.Cause(err) == user.ErrNotFound {
			return "", errUnauthorized
		}
		return "", errors.Wrap(err, "getting context user")
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ti.refreshDuration)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}
	return ti.GenerateToken(ti.Claims(usr, claims.OrigIssuedAt))
}
