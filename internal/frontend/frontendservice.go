package frontend

import (
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jo-hoe/photobox/internal/backend/credentials"
	"github.com/jo-hoe/photobox/internal/backend/database"
	"github.com/jo-hoe/photobox/internal/backend/imageprocessing"
	"github.com/jo-hoe/photobox/internal/backend/session"
	"github.com/jo-hoe/photobox/internal/common"
	"github.com/jo-hoe/photobox/internal/core"
	"github.com/labstack/echo/v4"
)

const (
	indexPage    = "index.html"
	loginPage    = "login.html"
	registerPage = "register.html"
	uploadPage   = "upload.html"
	galleryPage  = "gallery.html"
	postsPage    = "posts.html"
	errorPage    = "error.html"
)

const (
	msgNoUsername         = "No username entered"
	msgNoPassword         = "No password entered"
	msgInvalidCredentials = "No user with inputed username and password"
	msgPasswordMismatch   = "Passwords do not match"
	msgPasswordTooLong    = "Password is too long"
	msgUsernameTaken      = "Username already taken"
	msgNoPicture          = "No picture uploaded."
	msgNotAllowed         = "Not allowed!"
	msgNoPhotoID          = "No existing photo with submitted id"
	msgInternal           = "Something went wrong, please start again."
)

type loginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type registerForm struct {
	Username     string `form:"username" validate:"required"`
	Password     string `form:"password" validate:"required"`
	Confirmation string `form:"confirmation" validate:"eqfield=Password"`
}

type photoForm struct {
	PhotoID string `form:"photo_id"`
}

// page is the data every view receives; each view reads the fields it needs.
type page struct {
	LoggedIn bool
	Quote    string
	Reason   string
	Photos   []photoView
	Posts    []postView
}

type photoView struct {
	PhotoID  int64
	Image    template.URL
	IsPublic bool
	Date     string
	Time     string
}

type postView struct {
	Username string
	Image    template.URL
	Date     string
	Time     string
}

// userHandler is a handler that runs on behalf of a logged in user.
type userHandler func(ctx echo.Context, userID int64) error

type FrontendService struct {
	coreService *core.CoreService
	sessions    *session.Manager
}

func NewFrontendService(coreService *core.CoreService, sessions *session.Manager) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		sessions:    sessions,
	}
}

func (service *FrontendService) SetRoutes(e *echo.Echo) error {
	renderer, err := newTemplate()
	if err != nil {
		return err
	}
	e.Renderer = renderer

	e.Use(service.noCache)

	e.GET("/", service.requireSession(service.indexHandler))
	e.GET("/login", service.loginPageHandler)
	e.POST("/login", service.loginHandler)
	e.GET("/logout", service.logoutHandler)
	e.GET("/register", service.registerPageHandler)
	e.POST("/register", service.registerHandler)

	e.GET("/upload", service.requireSession(service.uploadPageHandler))
	e.POST("/upload", service.requireSession(service.uploadHandler))
	e.GET("/gallery", service.requireSession(service.galleryHandler))
	e.POST("/gallery", service.requireSession(service.toggleVisibilityHandler))
	e.GET("/posts", service.requireSession(service.postsHandler))
	e.POST("/delete", service.requireSession(service.deleteHandler))

	e.GET("/probe", service.probeHandler)
	e.GET("/icon.svg", service.iconHandler)
	return nil
}

// requireSession resolves the logged in user and hands its id to h.
// Requests without a session are sent to the login page.
func (service *FrontendService) requireSession(h userHandler) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		userID, ok, err := service.sessions.CurrentUser(ctx)
		if err != nil {
			slog.Error("requireSession: failed to resolve session", "error", err)
			return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
		}
		if !ok {
			return ctx.Redirect(http.StatusFound, "/login")
		}
		return h(ctx, userID)
	}
}

func (service *FrontendService) noCache(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		header := ctx.Response().Header()
		header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		header.Set("Expires", "0")
		header.Set("Pragma", "no-cache")
		return next(ctx)
	}
}

func (service *FrontendService) renderError(ctx echo.Context, status int, reason string) error {
	return ctx.Render(status, errorPage, page{
		LoggedIn: service.isLoggedIn(ctx),
		Reason:   reason,
	})
}

func (service *FrontendService) isLoggedIn(ctx echo.Context) bool {
	_, ok, err := service.sessions.CurrentUser(ctx)
	return err == nil && ok
}

func (service *FrontendService) indexHandler(ctx echo.Context, userID int64) error {
	quote, err := service.coreService.RandomQuote()
	if err != nil {
		slog.Error("indexHandler: failed to pick quotation", "user_id", userID, "error", err)
		return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
	}
	return ctx.Render(http.StatusOK, indexPage, page{LoggedIn: true, Quote: quote})
}

func (service *FrontendService) loginPageHandler(ctx echo.Context) error {
	if err := service.sessions.Clear(ctx); err != nil {
		slog.Error("loginPageHandler: failed to clear session", "error", err)
		return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
	}
	return ctx.Render(http.StatusOK, loginPage, page{})
}

func (service *FrontendService) loginHandler(ctx echo.Context) error {
	if err := service.sessions.Clear(ctx); err != nil {
		slog.Error("loginHandler: failed to clear session", "error", err)
		return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
	}

	var form loginForm
	if err := service.bindAndValidate(ctx, &form); err != nil {
		return service.renderFormError(ctx, err, map[string]string{
			"Username": msgNoUsername,
			"Password": msgNoPassword,
		})
	}

	userID, err := service.coreService.Authenticate(ctx.Request().Context(), form.Username, form.Password)
	if errors.Is(err, core.ErrInvalidCredentials) {
		slog.Info("loginHandler: rejected credentials", "username", form.Username)
		return service.renderError(ctx, http.StatusUnauthorized, msgInvalidCredentials)
	}
	if err != nil {
		slog.Error("loginHandler: failed to authenticate", "username", form.Username, "error", err)
		return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
	}

	if err := service.sessions.Start(ctx, userID); err != nil {
		slog.Error("loginHandler: failed to start session", "user_id", userID, "error", err)
		return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
	}
	return ctx.Redirect(http.StatusSeeOther, "/")
}

func (service *FrontendService) logoutHandler(ctx echo.Context) error {
	if err := service.sessions.Clear(ctx); err != nil {
		slog.Error("logoutHandler: failed to clear session", "error", err)
		return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
	}
	return ctx.Redirect(http.StatusSeeOther, "/")
}

func (service *FrontendService) registerPageHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, registerPage, page{LoggedIn: service.isLoggedIn(ctx)})
}

func (service *FrontendService) registerHandler(ctx echo.Context) error {
	var form registerForm
	if err := service.bindAndValidate(ctx, &form); err != nil {
		return service.renderFormError(ctx, err, map[string]string{
			"Username":     msgNoUsername,
			"Password":     msgNoPassword,
			"Confirmation": msgPasswordMismatch,
		})
	}

	err := service.coreService.Register(ctx.Request().Context(), form.Username, form.Password)
	switch {
	case errors.Is(err, database.ErrDuplicateUsername):
		slog.Info("registerHandler: username taken", "username", form.Username)
		return service.renderError(ctx, http.StatusConflict, msgUsernameTaken)
	case errors.Is(err, credentials.ErrPasswordTooLong):
		return service.renderError(ctx, http.StatusBadRequest, msgPasswordTooLong)
	case err != nil:
		slog.Error("registerHandler: failed to register", "username", form.Username, "error", err)
		return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
	}
	return ctx.Redirect(http.StatusSeeOther, "/login")
}

func (service *FrontendService) uploadPageHandler(ctx echo.Context, userID int64) error {
	return ctx.Render(http.StatusOK, uploadPage, page{LoggedIn: true})
}

func (service *FrontendService) uploadHandler(ctx echo.Context, userID int64) error {
	file, err := ctx.FormFile("picture")
	if err != nil || file.Filename == "" {
		slog.Info("uploadHandler: no picture in request", "user_id", userID, "error", err)
		return service.renderError(ctx, http.StatusBadRequest, msgNoPicture)
	}

	src, err := file.Open()
	if err != nil {
		slog.Error("uploadHandler: failed to open uploaded file", "error", err, "filename", file.Filename)
		return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("uploadHandler: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	image, err := io.ReadAll(src)
	if err != nil {
		slog.Error("uploadHandler: failed to read uploaded file", "error", err, "filename", file.Filename)
		return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
	}
	if len(image) == 0 {
		return service.renderError(ctx, http.StatusBadRequest, msgNoPicture)
	}

	if _, err := service.coreService.AddPhoto(ctx.Request().Context(), userID, image); err != nil {
		slog.Error("uploadHandler: failed to store photo", "user_id", userID, "error", err, "filename", file.Filename)
		return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
	}
	return ctx.Redirect(http.StatusSeeOther, "/gallery")
}

func (service *FrontendService) galleryHandler(ctx echo.Context, userID int64) error {
	photos, err := service.coreService.Gallery(ctx.Request().Context(), userID)
	if err != nil {
		slog.Error("galleryHandler: failed to list photos", "user_id", userID, "error", err)
		return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
	}

	views := make([]photoView, 0, len(photos))
	for _, photo := range photos {
		views = append(views, photoView{
			PhotoID:  photo.PhotoID,
			Image:    template.URL(imageprocessing.ToDataURI(photo.Image)),
			IsPublic: photo.IsPublic.IsPublic(),
			Date:     photo.Date,
			Time:     photo.Time,
		})
	}
	return ctx.Render(http.StatusOK, galleryPage, page{LoggedIn: true, Photos: views})
}

func (service *FrontendService) toggleVisibilityHandler(ctx echo.Context, userID int64) error {
	photoID, ok := service.photoID(ctx)
	if !ok {
		return service.renderError(ctx, http.StatusForbidden, msgNotAllowed)
	}

	_, err := service.coreService.TogglePhotoVisibility(ctx.Request().Context(), userID, photoID)
	if err != nil {
		return service.renderPhotoError(ctx, "toggleVisibilityHandler", userID, photoID, err)
	}
	return ctx.Redirect(http.StatusSeeOther, "/gallery")
}

func (service *FrontendService) postsHandler(ctx echo.Context, userID int64) error {
	photos, err := service.coreService.Feed(ctx.Request().Context())
	if err != nil {
		slog.Error("postsHandler: failed to list public photos", "user_id", userID, "error", err)
		return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
	}

	views := make([]postView, 0, len(photos))
	for _, photo := range photos {
		views = append(views, postView{
			Username: photo.Username,
			Image:    template.URL(imageprocessing.ToDataURI(photo.Image)),
			Date:     photo.Date,
			Time:     photo.Time,
		})
	}
	return ctx.Render(http.StatusOK, postsPage, page{LoggedIn: true, Posts: views})
}

func (service *FrontendService) deleteHandler(ctx echo.Context, userID int64) error {
	if ctx.FormValue("photo_id") == "" {
		return service.renderError(ctx, http.StatusBadRequest, msgNoPhotoID)
	}
	photoID, ok := service.photoID(ctx)
	if !ok {
		return service.renderError(ctx, http.StatusForbidden, msgNotAllowed)
	}

	if err := service.coreService.DeletePhoto(ctx.Request().Context(), userID, photoID); err != nil {
		return service.renderPhotoError(ctx, "deleteHandler", userID, photoID, err)
	}
	return ctx.Redirect(http.StatusSeeOther, "/gallery")
}

func (service *FrontendService) probeHandler(ctx echo.Context) error {
	if !service.coreService.IsHealthy() {
		slog.Warn("probeHandler: database does not answer", "status", http.StatusServiceUnavailable)
		return ctx.String(http.StatusServiceUnavailable, "database unavailable")
	}
	return ctx.String(http.StatusOK, "Photobox is running")
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	return ctx.Blob(http.StatusOK, imageprocessing.DetectMimeType(data), data)
}

// photoID parses the photo_id form value. Anything that is not a number
// cannot name a photo of the user.
func (service *FrontendService) photoID(ctx echo.Context) (int64, bool) {
	var form photoForm
	if err := ctx.Bind(&form); err != nil {
		return 0, false
	}
	photoID, err := strconv.ParseInt(form.PhotoID, 10, 64)
	if err != nil {
		return 0, false
	}
	return photoID, true
}

func (service *FrontendService) bindAndValidate(ctx echo.Context, form interface{}) error {
	if err := ctx.Bind(form); err != nil {
		return err
	}
	return ctx.Validate(form)
}

// renderFormError maps the first failing form field onto its message.
func (service *FrontendService) renderFormError(ctx echo.Context, err error, messages map[string]string) error {
	var fieldErr *common.FieldError
	if errors.As(err, &fieldErr) {
		if message, ok := messages[fieldErr.Field]; ok {
			return service.renderError(ctx, http.StatusBadRequest, message)
		}
	}
	slog.Warn("failed to read form", "path", ctx.Path(), "error", err)
	return service.renderError(ctx, http.StatusBadRequest, msgInternal)
}

func (service *FrontendService) renderPhotoError(ctx echo.Context, handler string, userID int64, photoID int64, err error) error {
	if errors.Is(err, core.ErrNotAllowed) {
		return service.renderError(ctx, http.StatusForbidden, msgNotAllowed)
	}
	slog.Error(handler+": failed to change photo", "user_id", userID, "photo_id", photoID, "error", err)
	return service.renderError(ctx, http.StatusInternalServerError, msgInternal)
}
