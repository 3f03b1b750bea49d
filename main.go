package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"photobooth/core"
	"photobooth/handlers/api/catalog"
	"photobooth/handlers/api/composite"
	"photobooth/handlers/api/files"
	"photobooth/handlers/api/images"
	"photobooth/handlers/api/stats"
	"photobooth/handlers/api/upscale"
	"photobooth/handlers/auth"
	"photobooth/handlers/websocket"
	authMiddleware "photobooth/middleware"
	"photobooth/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type config struct {
	maxUploadBytes int64
}

func setupRouter(store stores.Store, assets core.AssetStore, builder *composite.Builder, cfg config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Get("/assets/*", files.HandleServe(assets))

	r.Route("/api", func(r chi.Router) {
		r.Group(catalog.PublicRoutes(store))
		r.Post("/upscale", upscale.HandleUpscale())

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)
			r.Route("/images", func(r chi.Router) {
				r.Get("/", images.HandleList(store))
				r.Post("/", images.HandleCreate(assets, store))
			})
			r.Post("/compose", composite.HandleCompose(builder, assets, store))

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAdmin)
				r.Group(catalog.AdminRoutes(store))
				r.Post("/files", files.HandleUpload(assets, cfg.maxUploadBytes))
				r.Get("/admin/stats", stats.HandleStats(store))
			})
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleLogin)
		r.Get("/callback", auth.HandleCallback)
		r.Post("/register", auth.HandleRegister(store))
		r.Post("/login", auth.HandleCredentialsLogin(store))
	})

	return r
}

func waitForShutdown(ioo *socketio.Server, store stores.Store) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down...")
	ioo.Close(nil)
	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close store")
		}
	}
	os.Exit(0)
}

func maxUploadBytes() int64 {
	raw := os.Getenv("MAX_UPLOAD_BYTES")
	if raw == "" {
		return files.DefaultMaxUploadBytes
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		logrus.WithField("MAX_UPLOAD_BYTES", raw).Warn("Invalid upload limit, using default")
		return files.DefaultMaxUploadBytes
	}
	return n
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	seedPath := flag.String("seed", "", "Optional YAML file with the admin account and catalog to seed.")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	store := stores.GetStore()
	assets := stores.GetAssetStore()
	auth.InitAuth(store)

	if *seedPath != "" {
		seed, err := stores.LoadSeed(*seedPath)
		if err != nil {
			logrus.Fatalf("Failed to load seed: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if err := stores.Seed(ctx, store, seed); err != nil {
			logrus.Fatalf("Failed to seed: %v", err)
		}
		cancel()
	}

	client := &http.Client{Timeout: 30 * time.Second}
	builder := composite.NewBuilder(store, composite.NewAssetOpener(assets, stores.AssetPublicURL()), client)

	r := setupRouter(store, assets, builder, config{maxUploadBytes: maxUploadBytes()})

	ioo := websocket.SetupSocketIO(builder, assets, store)
	r.Mount("/socket.io/", ioo.ServeHandler(nil))

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(ioo, store)
}
