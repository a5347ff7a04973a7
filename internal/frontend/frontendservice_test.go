package frontend

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/jo-hoe/photobox/internal/backend/database"
	"github.com/jo-hoe/photobox/internal/backend/imageprocessing"
	"github.com/jo-hoe/photobox/internal/backend/session"
	"github.com/jo-hoe/photobox/internal/common"
	"github.com/jo-hoe/photobox/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testApp struct {
	e    *echo.Echo
	core *core.CoreService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	quotesPath := filepath.Join(t.TempDir(), "quotes.csv")
	require.NoError(t, os.WriteFile(quotesPath, []byte("\"Art washes away from the soul the dust of everyday life.\",Picasso\n"), 0644))

	coreService, err := core.NewCoreService(&core.ServiceConfig{
		Database:         core.Database{Type: "sqlite", ConnectionString: ":memory:"},
		QuotesPath:       quotesPath,
		PasswordHashCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	store, err := session.NewStore(context.Background(), session.StoreOptions{Type: "memory"})
	require.NoError(t, err)
	sessions := session.NewManager(store, "", false)
	t.Cleanup(func() {
		_ = sessions.Close()
		_ = coreService.Close()
	})

	e := echo.New()
	e.Validator = common.NewGenericEchoValidator()
	require.NoError(t, NewFrontendService(coreService, sessions).SetRoutes(e))
	return &testApp{e: e, core: coreService}
}

// browser keeps cookies between requests like a real client would.
type browser struct {
	app     *testApp
	cookies map[string]*http.Cookie
}

func (app *testApp) newBrowser() *browser {
	return &browser{app: app, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, cookie := range b.cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	b.app.e.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			delete(b.cookies, cookie.Name)
			continue
		}
		b.cookies[cookie.Name] = cookie
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) postForm(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return b.do(req)
}

func (b *browser) upload(t *testing.T, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename != "" {
		part, err := writer.CreateFormFile("picture", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, writer.WriteField("other", "value"))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return b.do(req)
}

func (b *browser) registerAndLogin(t *testing.T, username, password string) {
	t.Helper()
	rec := b.postForm("/register", url.Values{"username": {username}, "password": {password}, "confirmation": {password}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	rec = b.postForm("/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
}

func (app *testApp) gallery(t *testing.T, userID int64) []*database.Photo {
	t.Helper()
	photos, err := app.core.Gallery(context.Background(), userID)
	require.NoError(t, err)
	return photos
}

func (app *testApp) userID(t *testing.T, username, password string) int64 {
	t.Helper()
	userID, err := app.core.Authenticate(context.Background(), username, password)
	require.NoError(t, err)
	return userID
}

func formID(id int64) url.Values {
	return url.Values{"photo_id": {strconv.FormatInt(id, 10)}}
}

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R',
	0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0, 0x1f, 0x15, 0xc4, 0x89}

func TestFullScenario(t *testing.T) {
	app := newTestApp(t)
	alice := app.newBrowser()

	alice.registerAndLogin(t, "alice", "pw1")

	rec := alice.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Art washes away from the soul the dust of everyday life.")
	assert.NotContains(t, rec.Body.String(), "Picasso")

	rec = alice.upload(t, "photo.png", pngBytes)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/gallery", rec.Header().Get(echo.HeaderLocation))

	aliceID := app.userID(t, "alice", "pw1")
	photos := app.gallery(t, aliceID)
	require.Len(t, photos, 1)
	assert.Equal(t, pngBytes, photos[0].Image)
	assert.Equal(t, database.VisibilityPrivate, photos[0].IsPublic)
	photoID := photos[0].PhotoID

	rec = alice.get("/gallery")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), imageprocessing.ToDataURI(pngBytes))
	assert.Contains(t, rec.Body.String(), "Make public")

	rec = alice.get("/posts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), imageprocessing.EncodeBase64(pngBytes))

	rec = alice.postForm("/gallery", formID(photoID))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, database.VisibilityPublic, app.gallery(t, aliceID)[0].IsPublic)

	rec = alice.get("/posts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")
	assert.Contains(t, rec.Body.String(), imageprocessing.ToDataURI(pngBytes))

	rec = alice.postForm("/delete", formID(photoID))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Empty(t, app.gallery(t, aliceID))

	rec = alice.get("/posts")
	assert.NotContains(t, rec.Body.String(), imageprocessing.EncodeBase64(pngBytes))

	rec = alice.get("/logout")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))

	rec = alice.get("/gallery")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
}

func TestNoCacheHeaders(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser()

	for _, path := range []string{"/login", "/register", "/", "/probe"} {
		rec := b.get(path)
		assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"), path)
		assert.Equal(t, "0", rec.Header().Get("Expires"), path)
		assert.Equal(t, "no-cache", rec.Header().Get("Pragma"), path)
	}
}

func TestGuardedRoutesRedirectToLogin(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser()

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/"},
		{http.MethodGet, "/upload"},
		{http.MethodPost, "/upload"},
		{http.MethodGet, "/gallery"},
		{http.MethodPost, "/gallery"},
		{http.MethodGet, "/posts"},
		{http.MethodPost, "/delete"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := b.do(httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
		})
	}
}

func TestForgedSessionCookieIsRejected(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser()
	b.cookies[session.DefaultCookieName] = &http.Cookie{Name: session.DefaultCookieName, Value: "not-a-session"}

	rec := b.get("/gallery")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
}

func TestLoginErrors(t *testing.T) {
	app := newTestApp(t)
	app.newBrowser().postForm("/register", url.Values{"username": {"alice"}, "password": {"pw1"}, "confirmation": {"pw1"}})

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantReason string
	}{
		{"missing username", url.Values{"password": {"pw1"}}, http.StatusBadRequest, msgNoUsername},
		{"missing password", url.Values{"username": {"alice"}}, http.StatusBadRequest, msgNoPassword},
		{"wrong password", url.Values{"username": {"alice"}, "password": {"nope"}}, http.StatusUnauthorized, msgInvalidCredentials},
		{"unknown user", url.Values{"username": {"bob"}, "password": {"pw1"}}, http.StatusUnauthorized, msgInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := app.newBrowser()
			rec := b.postForm("/login", tt.form)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantReason)
			assert.Empty(t, b.cookies)
		})
	}
}

func TestLoginRejectsPasswordExtendingStoredOne(t *testing.T) {
	app := newTestApp(t)
	password := strings.Repeat("x", 72)
	app.newBrowser().registerAndLogin(t, "alice", password)

	b := app.newBrowser()
	rec := b.postForm("/login", url.Values{"username": {"alice"}, "password": {password + "WRONG"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), msgInvalidCredentials)
	assert.Empty(t, b.cookies)

	rec = b.get("/gallery")
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestLoginSetsSingleSessionCookie(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser()
	b.registerAndLogin(t, "alice", "pw1")

	rec := b.postForm("/login", url.Values{"username": {"alice"}, "password": {"pw1"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	var sessionCookies []*http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == session.DefaultCookieName {
			sessionCookies = append(sessionCookies, cookie)
		}
	}
	require.Len(t, sessionCookies, 1)
	assert.NotEmpty(t, sessionCookies[0].Value)
}

func TestLoginClearsExistingSession(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser()
	b.registerAndLogin(t, "alice", "pw1")

	rec := b.get("/login")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, b.cookies)

	rec = b.get("/gallery")
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestRegisterErrors(t *testing.T) {
	app := newTestApp(t)
	app.newBrowser().registerAndLogin(t, "alice", "pw1")

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantReason string
	}{
		{"missing username", url.Values{"password": {"pw"}, "confirmation": {"pw"}}, http.StatusBadRequest, msgNoUsername},
		{"missing password", url.Values{"username": {"bob"}}, http.StatusBadRequest, msgNoPassword},
		{"mismatch", url.Values{"username": {"bob"}, "password": {"pw"}, "confirmation": {"wp"}}, http.StatusBadRequest, msgPasswordMismatch},
		{"duplicate", url.Values{"username": {"alice"}, "password": {"pw2"}, "confirmation": {"pw2"}}, http.StatusConflict, msgUsernameTaken},
		{"too long", url.Values{"username": {"carol"}, "password": {strings.Repeat("x", 80)}, "confirmation": {strings.Repeat("x", 80)}}, http.StatusBadRequest, msgPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.newBrowser().postForm("/register", tt.form)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantReason)
		})
	}
}

func TestUploadWithoutPicture(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser()
	b.registerAndLogin(t, "alice", "pw1")

	rec := b.upload(t, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), msgNoPicture)

	rec = b.upload(t, "empty.png", []byte{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), msgNoPicture)

	assert.Empty(t, app.gallery(t, app.userID(t, "alice", "pw1")))
}

func TestForeignPhotoNotAllowed(t *testing.T) {
	app := newTestApp(t)
	alice := app.newBrowser()
	alice.registerAndLogin(t, "alice", "pw1")
	mallory := app.newBrowser()
	mallory.registerAndLogin(t, "mallory", "pw2")

	require.Equal(t, http.StatusSeeOther, alice.upload(t, "photo.png", pngBytes).Code)
	aliceID := app.userID(t, "alice", "pw1")
	photoID := app.gallery(t, aliceID)[0].PhotoID

	rec := mallory.postForm("/gallery", formID(photoID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), msgNotAllowed)

	rec = mallory.postForm("/delete", formID(photoID))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), msgNotAllowed)

	photos := app.gallery(t, aliceID)
	require.Len(t, photos, 1)
	assert.Equal(t, database.VisibilityPrivate, photos[0].IsPublic)
}

func TestPhotoIDErrors(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser()
	b.registerAndLogin(t, "alice", "pw1")

	tests := []struct {
		name       string
		path       string
		form       url.Values
		wantStatus int
		wantReason string
	}{
		{"delete without id", "/delete", url.Values{}, http.StatusBadRequest, msgNoPhotoID},
		{"delete non numeric id", "/delete", url.Values{"photo_id": {"abc"}}, http.StatusForbidden, msgNotAllowed},
		{"delete missing photo", "/delete", formID(4242), http.StatusForbidden, msgNotAllowed},
		{"toggle without id", "/gallery", url.Values{}, http.StatusForbidden, msgNotAllowed},
		{"toggle missing photo", "/gallery", formID(4242), http.StatusForbidden, msgNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := b.postForm(tt.path, tt.form)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantReason)
		})
	}
}

func TestProbe(t *testing.T) {
	app := newTestApp(t)

	rec := app.newBrowser().get("/probe")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, app.core.Close())
	rec = app.newBrowser().get("/probe")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIcon(t *testing.T) {
	app := newTestApp(t)

	rec := app.newBrowser().get("/icon.svg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get(echo.HeaderContentType))
}
