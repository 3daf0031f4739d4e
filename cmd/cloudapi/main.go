package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/device-cloud/pkg/auth"
	"github.com/tendant/device-cloud/pkg/config"
	"github.com/tendant/device-cloud/pkg/device"
	"github.com/tendant/device-cloud/pkg/oidcflow"
	oidcflowapi "github.com/tendant/device-cloud/pkg/oidcflow/api"
	"github.com/tendant/device-cloud/pkg/oidcprovider"
	"github.com/tendant/device-cloud/pkg/session"
	"github.com/tendant/device-cloud/pkg/user"
)

// newProvider builds the single active identity provider selected by the
// configuration. Discovery runs once here; a dead provider fails startup.
func newProvider(ctx context.Context, cfg *config.Config) (oidcprovider.Provider, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.AuthProvider {
	case "authentik":
		return oidcprovider.NewAuthentik(ctx, oidcprovider.Config{
			Issuer:       cfg.Authentik.Issuer,
			ClientID:     cfg.Authentik.ClientID,
			ClientSecret: cfg.Authentik.ClientSecret,
			JWKSURL:      cfg.Authentik.JWKSURL,
			RedirectURI:  cfg.RedirectURI(),
		})
	default:
		return oidcprovider.NewGoogle(ctx, oidcprovider.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURI:  cfg.RedirectURI(),
		})
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	// Load .env if present, before reading environment variables
	if err := godotenv.Load(); err == nil {
		slog.Info("Configuration loaded from .env file")
	}

	cfg := config.Config{}
	cleanenv.ReadEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(-1)
	}

	pool, err := pgxpool.New(context.Background(), cfg.CloudDb.ToDatabaseURL())
	if err != nil {
		slog.Error("Failed creating dbpool", "db", cfg.CloudDb.Database, "host", cfg.CloudDb.Host, "port", cfg.CloudDb.Port, "user", cfg.CloudDb.User)
		os.Exit(-1)
	}

	provider, err := newProvider(context.Background(), &cfg)
	if err != nil {
		slog.Error("Failed to initialize identity provider", "provider", cfg.AuthProvider, "error", err)
		os.Exit(-1)
	}

	userRepository := user.NewPostgresUserRepository(pool)
	deviceRepository := device.NewPostgresDeviceRepository(pool)
	adoptionService := device.NewAdoptionService(deviceRepository)

	sessionManager := session.NewManager(session.NewInMemStore(),
		session.WithSecureCookie(cfg.Session.CookieSecure))

	flowService := oidcflow.NewService(provider, sessionManager.Store(), userRepository, adoptionService, cfg.AppURL)
	flowHandle := oidcflowapi.NewHandle(flowService, sessionManager)

	server := app.DefaultWithoutRoutes()
	app.RoutesHealthz(server.R)

	server.R.Use(sessionManager.Handler)
	flowHandle.Routes(server.R)

	server.R.Group(func(r chi.Router) {
		r.Use(auth.Middleware(sessionManager, provider))
		r.Get("/api/me", func(w http.ResponseWriter, r *http.Request) {
			claims := auth.GetClaims(r)
			render.JSON(w, r, map[string]string{
				"sub":     claims.Subject,
				"email":   claims.Email,
				"picture": claims.Picture,
			})
		})
	})

	slog.Info("Device cloud API ready", "provider", provider.Name(), "callback", cfg.RedirectURI())
	server.Run()
}
