package session

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const DefaultCookieName = "photobox_session"

// Manager binds a Store to a browser through a session cookie.
type Manager struct {
	store        Store
	cookieName   string
	secureCookie bool
}

func NewManager(store Store, cookieName string, secureCookie bool) *Manager {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Manager{
		store:        store,
		cookieName:   cookieName,
		secureCookie: secureCookie,
	}
}

// Start replaces whatever session the browser had with a new one for userID.
// The response carries exactly one session cookie, even after Clear.
func (m *Manager) Start(ctx echo.Context, userID int64) error {
	if err := m.revoke(ctx); err != nil {
		return err
	}
	m.dropQueuedCookie(ctx)

	token, err := m.store.Create(ctx.Request().Context(), userID)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	// no MaxAge: the cookie lives as long as the browser session
	ctx.SetCookie(&http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear destroys the server-side state and expires the cookie.
func (m *Manager) Clear(ctx echo.Context) error {
	if err := m.revoke(ctx); err != nil {
		return err
	}

	ctx.SetCookie(&http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// CurrentUser returns the user id bound to the request's session, if any.
func (m *Manager) CurrentUser(ctx echo.Context) (int64, bool, error) {
	token, ok := m.token(ctx)
	if !ok {
		return 0, false, nil
	}
	userID, found, err := m.store.Lookup(ctx.Request().Context(), token)
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up session: %w", err)
	}
	return userID, found, nil
}

func (m *Manager) Close() error {
	return m.store.Close()
}

// revoke deletes the server-side state of the request's token.
func (m *Manager) revoke(ctx echo.Context) error {
	token, ok := m.token(ctx)
	if !ok {
		return nil
	}
	if err := m.store.Delete(ctx.Request().Context(), token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// dropQueuedCookie removes session cookies already set on the response.
func (m *Manager) dropQueuedCookie(ctx echo.Context) {
	header := ctx.Response().Header()
	queued := header.Values(echo.HeaderSetCookie)
	if len(queued) == 0 {
		return
	}

	prefix := m.cookieName + "="
	kept := make([]string, 0, len(queued))
	for _, cookie := range queued {
		if !strings.HasPrefix(cookie, prefix) {
			kept = append(kept, cookie)
		}
	}
	header.Del(echo.HeaderSetCookie)
	for _, cookie := range kept {
		header.Add(echo.HeaderSetCookie, cookie)
	}
}

func (m *Manager) token(ctx echo.Context) (string, bool) {
	cookie, err := ctx.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
