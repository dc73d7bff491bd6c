// Command mountd is the mount daemon process: it loads configuration,
// attaches the configured axis/camera/plate-solve backends, runs the
// controller state machine, serves the LX200 ASCII TCP protocol, and
// optionally serves the Postgres-backed admin HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/skywatch/altaz-mount/internal/auth"
	"github.com/skywatch/altaz-mount/internal/camera"
	fakecamera "github.com/skywatch/altaz-mount/internal/camera/fake"
	"github.com/skywatch/altaz-mount/internal/config"
	"github.com/skywatch/altaz-mount/internal/controller"
	"github.com/skywatch/altaz-mount/internal/httpapi"
	"github.com/skywatch/altaz-mount/internal/motor"
	fakemotor "github.com/skywatch/altaz-mount/internal/motor/fake"
	"github.com/skywatch/altaz-mount/internal/platesolve"
	fakeplatesolve "github.com/skywatch/altaz-mount/internal/platesolve/fake"
	"github.com/skywatch/altaz-mount/internal/protocol"
	"github.com/skywatch/altaz-mount/internal/skymath"
	db "github.com/skywatch/altaz-mount/internal/store"
)

func init() {
	fakemotor.Register()
	fakecamera.Register()
	fakeplatesolve.Register()
}

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	flag.Parse()

	log.Println("===========================================")
	log.Println("  Alt/Az Mount Daemon")
	log.Println("===========================================")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Configuration loaded from: %s", *configPath)
	log.Printf("Observer: %.4f°N, %.4f°E, %.0fm MSL", cfg.Observer.Latitude, cfg.Observer.Longitude, cfg.Observer.Elevation)
	log.Printf("Controller mode at boot: %s", cfg.Mode())

	observer := skymath.Observer{
		Location: skymath.Geographic{
			Latitude:  cfg.Observer.Latitude,
			Longitude: cfg.Observer.Longitude,
			Altitude:  cfg.Observer.Elevation,
		},
	}

	alt, az := buildAxes(cfg)
	cam := buildCamera(cfg)
	solver := buildSolver(cfg)

	ctrl := controller.New(alt, az, cam, solver, observer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		log.Fatalf("Failed to start controller: %v", err)
	}
	log.Printf("✓ Controller started in mode %s", ctrl.Mode())

	var database *db.DB
	var alignRepo *db.AlignmentRepository
	var userRepo *db.UserRepository
	if cfg.Store.Enabled {
		log.Println("Connecting to store...")
		database, err = db.Connect(cfg.Store)
		if err != nil {
			log.Fatalf("Failed to connect to store: %v", err)
		}
		defer database.Close()

		if err := database.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		log.Println("✓ Store connected and schema initialized")

		alignRepo = db.NewAlignmentRepository(database)
		userRepo = db.NewUserRepository(database.DB)

		go runPruneLoop(ctx, database)
	}

	lx200Server := protocol.NewServer(serverAddr(cfg.Server.Host, cfg.Server.Port), ctrl)
	go func() {
		if err := lx200Server.ListenAndServe(ctx); err != nil {
			log.Printf("LX200 server stopped: %v", err)
		}
	}()
	log.Printf("✓ LX200 ASCII server listening on %s", serverAddr(cfg.Server.Host, cfg.Server.Port))

	var adminServer *httpServer
	if cfg.Admin.Enabled {
		tokenDuration, err := time.ParseDuration(cfg.Admin.TokenDuration)
		if err != nil {
			tokenDuration = 24 * time.Hour
		}
		authSvc := auth.NewService(auth.Config{JWTSecret: cfg.Admin.JWTSecret, TokenDuration: tokenDuration})
		api := httpapi.NewServer(authSvc, userRepo, alignRepo, ctrl)
		adminServer = startHTTPServer(serverAddr(cfg.Admin.Host, cfg.Admin.Port), api.Handler())
		log.Printf("✓ Admin API listening on %s", serverAddr(cfg.Admin.Host, cfg.Admin.Port))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Println("===========================================")
	log.Println("  Mount daemon started, press Ctrl+C to stop")
	log.Println("===========================================")

	sig := <-sigChan
	log.Printf("Received signal: %v, shutting down gracefully...", sig)

	cancel()
	lx200Server.Close()
	if adminServer != nil {
		adminServer.shutdown(context.Background())
	}
	ctrl.Stop(context.Background())
	log.Println("✓ Mount daemon stopped")
}

func serverAddr(host string, port int) string {
	if host == "" {
		host = "0.0.0.0"
	}
	return host + ":" + strconv.Itoa(port)
}

// httpServer wraps http.Server so main can start the admin API in a
// goroutine and shut it down gracefully alongside the other listeners.
type httpServer struct {
	srv *http.Server
}

func startHTTPServer(addr string, handler http.Handler) *httpServer {
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin API: %v", err)
		}
	}()
	return &httpServer{srv: srv}
}

func (h *httpServer) shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil {
		log.Printf("admin API: shutdown: %v", err)
	}
}

func buildAxes(cfg *config.Config) (*motor.Axis, *motor.Axis) {
	var alt, az *motor.Axis
	if cfg.Alt.Enabled {
		backend, err := motor.New(cfg.Alt.Implementation, map[string]any{"max_acceleration_steps": cfg.Alt.MaxAcceleration / cfg.Alt.ConversionFactor})
		if err != nil {
			log.Fatalf("Failed to construct alt backend %q: %v", cfg.Alt.Implementation, err)
		}
		alt = motor.NewAxis("alt", backend, motor.WrapAltitude, cfg.Alt.MaxVelocity, cfg.Alt.MaxAcceleration, cfg.Alt.ConversionFactor)
	}
	if cfg.Az.Enabled {
		backend, err := motor.New(cfg.Az.Implementation, map[string]any{"max_acceleration_steps": cfg.Az.MaxAcceleration / cfg.Az.ConversionFactor})
		if err != nil {
			log.Fatalf("Failed to construct az backend %q: %v", cfg.Az.Implementation, err)
		}
		az = motor.NewAxis("az", backend, motor.WrapAzimuth, cfg.Az.MaxVelocity, cfg.Az.MaxAcceleration, cfg.Az.ConversionFactor)
	}
	return alt, az
}

func buildCamera(cfg *config.Config) camera.Camera {
	if !cfg.Camera.Enabled {
		return nil
	}
	cam, err := camera.New(cfg.Camera.Implementation, map[string]any{})
	if err != nil {
		log.Fatalf("Failed to construct camera backend %q: %v", cfg.Camera.Implementation, err)
	}
	return cam
}

func buildSolver(cfg *config.Config) platesolve.Solver {
	if !cfg.Camera.Enabled {
		return nil
	}
	solver, err := platesolve.New(cfg.Camera.Implementation, map[string]any{})
	if err != nil {
		log.Fatalf("Failed to construct plate solver %q: %v", cfg.Camera.Implementation, err)
	}
	return solver
}

// runPruneLoop periodically removes retired alignment points and aged
// session events, mirroring the collector's periodic-cleanup idiom.
func runPruneLoop(ctx context.Context, database *db.DB) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := database.PruneOldEvents(ctx, 7*24*time.Hour); err != nil {
				log.Printf("store: prune old events: %v", err)
			}
		}
	}
}
