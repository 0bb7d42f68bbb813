package cmd

import (
	"database/sql"
	"errors"
	"net"
	"net/http"

	"github.com/modelboard/webapp/app/controller"
	"github.com/modelboard/webapp/app/middleware"
	"github.com/modelboard/webapp/app/repository"
	"github.com/modelboard/webapp/app/service"
	"github.com/modelboard/webapp/app/view"
	"github.com/modelboard/webapp/config"
	"github.com/modelboard/webapp/pkg/secrets"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the Echo HTTP server that renders the application pages.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	cipher, err := secrets.NewCipher(cfg.SessionEncryptionKey)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize session cipher")
	}

	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	listingRepo := repository.NewListingRepository(db)

	store := service.NewStore(userRepo, refreshTokenRepo, listingRepo)
	sessionService := service.NewSessionService(cfg, cipher, store, userRepo)
	gateway := service.NewProviderGateway(cfg, cipher)
	listingService := service.NewListingService(store, listingRepo)

	startHTTPServer(cfg, sessionService, gateway, listingService, store, userRepo, refreshTokenRepo, listingRepo)
}

func startHTTPServer(
	cfg *config.Config,
	sessionService *service.SessionService,
	gateway *service.ProviderGateway,
	listingService *service.ListingService,
	store *service.Store,
	userRepo *repository.UserRepository,
	refreshTokenRepo *repository.RefreshTokenRepository,
	listingRepo *repository.ListingRepository,
) {
	e := echo.New()
	defer e.Close()
	e.HideBanner = true

	renderer, err := view.NewRenderer()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to parse templates")
	}
	e.Renderer = renderer
	e.HTTPErrorHandler = renderErrorPage

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())

	sessionMiddleware := middleware.NewSessionMiddleware(cfg, sessionService, userRepo, refreshTokenRepo, listingRepo)
	e.Use(sessionMiddleware.Resolve)

	loginController := controller.NewLoginController(sessionService, gateway, sessionMiddleware)
	oauthController := controller.NewOAuthController(cfg, sessionService, gateway, sessionMiddleware)
	signupController := controller.NewSignupController(cfg, sessionService, sessionMiddleware)
	listingController := controller.NewListingController(listingService)
	inviteController := controller.NewInviteController(sessionService, store, userRepo, service.LogMailer{})

	e.GET("/", listingController.GetIndex, middleware.Require(middleware.VerifyOwner))
	e.GET("/login", loginController.GetLogin)
	e.POST("/login", loginController.PostLogin)
	e.GET("/login/:provider", loginController.ProviderRedirect)
	e.POST("/logout", loginController.PostLogout, middleware.Require(middleware.VerifyAuthenticated))
	e.GET("/"+cfg.OAuthCallbackPath, oauthController.Callback)

	e.GET("/signup", signupController.GetSignup, middleware.Require(middleware.VerifyPending))
	e.GET("/signup/options", signupController.GetSignupOptions, middleware.Require(middleware.VerifyPending))
	e.GET("/signup/expired", signupController.GetSignupExpired)
	e.POST("/signup", signupController.PostSignup, middleware.Require(middleware.VerifyPending))

	e.GET("/dashboard", listingController.GetDashboard, middleware.Require(middleware.VerifyAuthenticated))

	admin := middleware.Require(middleware.VerifyAdmin)
	e.GET("/listing/new", listingController.GetNew, admin)
	e.POST("/listing", listingController.PostCreate, admin)
	e.GET("/listing/:id/edit", listingController.GetEdit, admin)
	e.POST("/listing/:id", listingController.PostUpdate, admin)
	e.POST("/listing/:id/delete", listingController.PostDelete, admin)

	e.POST("/invite", inviteController.PostInvite, middleware.Require(middleware.VerifyOwner))

	httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}

// renderErrorPage maps handler errors onto the not-found and error pages
// instead of Echo's default JSON body.
func renderErrorPage(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Something went wrong."
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok && msg != http.StatusText(status) {
			message = msg
		}
	}

	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("uri", c.Request().RequestURI).Error("request failed")
	}

	if status == http.StatusNotFound {
		if renderErr := c.Render(status, "not_found", view.Page{Title: "Not found"}); renderErr == nil {
			return
		}
	}
	if renderErr := c.Render(status, "error", view.ErrorPage{
		Page:    view.Page{Title: "Error"},
		Message: message,
	}); renderErr != nil {
		_ = c.NoContent(status)
	}
}
