package auth

import (
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// LoginRequest is the inbound login payload.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// ChangePasswordRequest is the inbound change-password payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	RevokeOthers    bool   `json:"revoke_others"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required),
	)
}

// RouteAuthenticator adapts Auther to HTTP routes. Its Protected
// middleware is the auth guard every other module mounts: it consults
// the session registry through CurrentPrincipal, so revoked sessions are
// rejected even while their tokens are structurally valid.
type RouteAuthenticator struct {
	auth         Authenticator
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		auth:   auther,
		cfg:    cfg,
		Logger: defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// TokenFromRequest extracts the bearer token from the Authorization
// header, falling back to the session cookie.
func (a *RouteAuthenticator) TokenFromRequest(c router.Context) string {
	header := c.Header("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Cookies(a.cfg.GetContextKey())
}

// Protected returns the guard middleware. On success the resolved
// principal rides the request context for downstream handlers.
func (a *RouteAuthenticator) Protected() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			token := a.TokenFromRequest(c)
			if token == "" {
				return a.ErrorHandler(c, ErrTokenMalformed)
			}

			info, err := a.auth.CurrentPrincipal(c.Context(), token)
			if err != nil {
				return a.ErrorHandler(c, err)
			}

			c.Locals(a.cfg.GetContextKey(), info)
			c.SetContext(WithPrincipalContext(c.Context(), info))

			return hf(c)
		}
	}
}

func (a *RouteAuthenticator) Login(c router.Context) error {
	payload := LoginRequest{}
	if err := c.Bind(&payload); err != nil {
		return a.ErrorHandler(c, errors.Wrap(err, errors.CategoryBadInput, "invalid login payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, errors.Wrap(err, errors.CategoryBadInput, "invalid login payload").
			WithCode(errors.CodeBadRequest))
	}

	result, err := a.auth.Login(c.Context(), payload.Identifier, payload.Password, a.connectionInfo(c))
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return a.ErrorHandler(c, err)
	}

	a.setCookieToken(c, result.Token, time.Duration(result.ExpiresIn)*time.Second)
	return c.JSON(http.StatusOK, result)
}

func (a *RouteAuthenticator) Logout(c router.Context) error {
	token := a.TokenFromRequest(c)
	if token != "" {
		if err := a.auth.Logout(c.Context(), token); err != nil {
			return a.ErrorHandler(c, err)
		}
	}

	a.cookieDel(c, a.cfg.GetContextKey())
	return c.NoContent(http.StatusNoContent)
}

func (a *RouteAuthenticator) Refresh(c router.Context) error {
	token := a.TokenFromRequest(c)
	result, err := a.auth.Refresh(c.Context(), token, a.connectionInfo(c))
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	a.setCookieToken(c, result.Token, time.Duration(result.ExpiresIn)*time.Second)
	return c.JSON(http.StatusOK, result)
}

func (a *RouteAuthenticator) ValidateToken(c router.Context) error {
	status, err := a.auth.ValidateToken(c.Context(), a.TokenFromRequest(c))
	if err != nil {
		return a.ErrorHandler(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

func (a *RouteAuthenticator) ChangePassword(c router.Context) error {
	payload := ChangePasswordRequest{}
	if err := c.Bind(&payload); err != nil {
		return a.ErrorHandler(c, errors.Wrap(err, errors.CategoryBadInput, "invalid change password payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(c, errors.Wrap(err, errors.CategoryBadInput, "invalid change password payload").
			WithCode(errors.CodeBadRequest))
	}

	revoked, err := a.auth.ChangePassword(
		c.Context(),
		a.TokenFromRequest(c),
		payload.CurrentPassword,
		payload.NewPassword,
		payload.RevokeOthers,
	)
	if err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"sessions_revoked": revoked})
}

// connectionInfo extracts display metadata from proxy headers. The
// router abstraction exposes no transport remote address, so a direct
// connection with neither header set yields an empty IP; X-Real-IP
// covers proxies that do not populate X-Forwarded-For.
func (a *RouteAuthenticator) connectionInfo(c router.Context) ConnectionInfo {
	ip := c.Header("X-Forwarded-For")
	if idx := strings.IndexByte(ip, ','); idx >= 0 {
		ip = ip[:idx]
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = strings.TrimSpace(c.Header("X-Real-IP"))
	}

	return ConnectionInfo{
		IP:        ip,
		UserAgent: c.Header("User-Agent"),
	}
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Auth route error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		switch richErr.Category {
		case errors.CategoryAuth:
			status = http.StatusUnauthorized
		case errors.CategoryAuthz:
			status = http.StatusForbidden
		case errors.CategoryBadInput, errors.CategoryValidation:
			status = http.StatusBadRequest
		case errors.CategoryOperation:
			status = http.StatusServiceUnavailable
		default:
			status = http.StatusInternalServerError
		}
	}

	return c.JSON(status, map[string]any{
		"error": richErr.Message,
		"code":  richErr.TextCode,
	})
}
