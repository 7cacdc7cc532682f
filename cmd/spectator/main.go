package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rey-arena/internal/api"
	"rey-arena/internal/capture"
	"rey-arena/internal/config"
	"rey-arena/internal/game"
	"rey-arena/internal/protocol"
	"rey-arena/internal/render"
	"rey-arena/internal/session"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎥 ================================")
	log.Println("🎥  REY ARENA - SPECTATOR")
	log.Println("🎥 ================================")

	appConfig := config.Load()
	viewCfg := appConfig.View
	netCfg := appConfig.Network
	specCfg := appConfig.Spectator

	if err := os.MkdirAll(specCfg.OutputDir, 0o755); err != nil {
		log.Fatalf("❌ Cannot create output dir %s: %v", specCfg.OutputDir, err)
	}
	log.Printf("🎥 Writing %dx%d frames to %s every %v", viewCfg.Width, viewCfg.Height, specCfg.OutputDir, specCfg.Interval)

	opts := game.DefaultOptions()
	opts.Effects = appConfig.Effects
	scene := game.NewScene(opts)
	defer scene.Close()

	scene.OnMatchEnd(func(rows []protocol.Standing) {
		for i, row := range rows {
			log.Printf("   %d. %-16s %6.1fs", i+1, row.Nickname, row.TimeAsRey)
		}
	})

	sessOpts := session.DefaultOptions(netCfg.ServerURL, netCfg.Nickname)
	sessOpts.JoinTimeout = netCfg.JoinTimeout
	sess := session.New(sessOpts)
	sess.OnStateChange(scene.HandleState)
	sess.OnMessage(scene.HandleMessage)
	sess.OnDisconnect(scene.HandleDisconnect)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Connect(ctx); err != nil {
		log.Fatalf("❌ Failed to join: %v", err)
	}
	defer sess.Close()
	scene.SetLocalID(sess.SessionID())
	scene.SetConnected(true)

	renderer := render.NewRenderer(render.Config{
		Width:  viewCfg.Width,
		Height: viewCfg.Height,
		FOV:    render.DefaultConfig().FOV,
	})

	w, h := renderer.Size()
	writer := capture.NewWriter(specCfg.OutputDir, w, h)
	writer.Start()

	if appConfig.Debug.Enabled {
		debugServer := api.NewServer(appConfig.Debug, api.RouterConfig{
			Scene:   scene,
			Session: sess,
			Stats:   map[string]api.StatsSource{"capture": writer},
		})
		if err := debugServer.Start(); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				debugServer.Shutdown(shutdownCtx)
			}()
		}
	}

	log.Println("✅ Spectator ready! Press Ctrl+C to stop.")
	saved := record(ctx, sess.Done(), scene, renderer, writer, specCfg)

	log.Printf("🛑 Shutting down after %d frames...", saved)
	writer.Stop()
	log.Println("👋 Goodbye!")
}

// record queues one frame per interval until ctx ends, the session ends or
// MaxFrames is reached. It returns the number of frames queued.
func record(ctx context.Context, sessionDone <-chan struct{}, scene *game.Scene, renderer *render.Renderer, writer *capture.Writer, cfg config.SpectatorConfig) int {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	saved := 0
	for {
		select {
		case <-ctx.Done():
			return saved
		case <-sessionDone:
			log.Println("🔌 Session ended, stopping capture")
			return saved
		case now := <-ticker.C:
			if !writer.Submit(renderer.Render(scene.Frame(now))) {
				log.Println("⚠️ Frame dropped, writer is behind")
				continue
			}
			saved++
			if saved%30 == 0 {
				log.Printf("📊 %d frames saved", saved)
			}
			if cfg.MaxFrames > 0 && saved >= cfg.MaxFrames {
				return saved
			}
		}
	}
}
