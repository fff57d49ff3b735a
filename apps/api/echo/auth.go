package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/staff"
)

const (
	jwtContextKey     = "staffToken"
	contextProfileKey = "profile"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt   int64  `json:"oriat,omitempty"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	Role           string `json:"role,omitempty"`
	OrganizationID string `json:"org,omitempty"`
	IsAdmin        bool   `json:"is_admin,omitempty"`
}

// jwtAuth owns token issuance and verification for the API.
type jwtAuth struct {
	conf *core.Config
}

func (a jwtAuth) middlewareConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    a.conf.SecretKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
		Claims:        new(Claims),
	}
}

func (a jwtAuth) claimsFor(p staff.Profile, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.conf.AppName,
			Subject:   p.UID,
			Audience:  "EasySpeak",
			ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt:   oriat,
		Email:          p.Email,
		Name:           p.Name,
		Role:           p.Role,
		OrganizationID: p.OrganizationID,
		IsAdmin:        p.IsAdmin(),
	}
}

// generateToken signs a JWT token string representing the Claims.
func (a jwtAuth) generateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(a.conf.SecretKey))
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

// authenticate checks local credentials and stamps the login time.
func (a jwtAuth) authenticate(ctx echo.Context, email, pwd string, svc *staff.Service) (*Claims, error) {
	reqCtx := ctx.Request().Context()

	p, err := svc.Authenticate(reqCtx, email, pwd)
	if err != nil {
		if errors.Cause(err) == staff.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "authenticating")
	}
	p, err = svc.SetLastLogin(reqCtx, p)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return a.claimsFor(p), nil
}

func (a jwtAuth) refreshToken(ctx echo.Context, svc *staff.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	p, err := getContextProfile(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context profile")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := a.claimsFor(p, claims.OrigIssuedAt)
	token, err := a.generateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextProfile resolves the authenticated staff profile, caching it on
// the request context. Deleted profiles fail here, which revokes access on
// the very next request.
func getContextProfile(ctx echo.Context, svc *staff.Service, clms ...Claims) (staff.Profile, error) {
	if p, ok := ctx.Get(contextProfileKey).(staff.Profile); ok {
		return p, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return staff.Profile{}, errors.Wrap(err, "getting context claims")
		}
	}

	p, err := svc.GetByUID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == staff.ErrNotFound {
			return staff.Profile{}, errUnauthorized
		}
		return staff.Profile{}, errors.Wrap(err, "finding profile by UID")
	}
	ctx.Set(contextProfileKey, p)
	return p, nil
}
