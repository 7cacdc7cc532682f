package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rey-arena/internal/api"
	"rey-arena/internal/config"
	"rey-arena/internal/frontend"
	"rey-arena/internal/game"
	"rey-arena/internal/input"
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

	log.Println("🎮 ================================")
	log.Println("🎮  REY ARENA - CLIENT")
	log.Println("🎮 ================================")

	appConfig := config.Load()
	viewCfg := appConfig.View
	netCfg := appConfig.Network

	log.Printf("🎮 Config: %dx%d @ %d FPS, input %d Hz", viewCfg.Width, viewCfg.Height, viewCfg.FPS, netCfg.InputRate)

	sampler := input.NewSampler(nil)

	opts := game.DefaultOptions()
	opts.Effects = appConfig.Effects
	opts.Sampler = sampler
	scene := game.NewScene(opts)
	defer scene.Close()

	scene.OnConnectionError(func(msg string) {
		log.Printf("🔌 Connection error: %s", msg)
	})
	scene.OnMatchEnd(func(rows []protocol.Standing) {
		for i, row := range rows {
			log.Printf("   %d. %-16s %6.1fs", i+1, row.Nickname, row.TimeAsRey)
		}
	})
	scene.OnRolesRotated(func(roles map[string]string) {
		log.Printf("🔄 Roles rotated (%d players)", len(roles))
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
		// No automatic retry: the HUD shows the failure.
		scene.HandleDisconnect(err)
		log.Printf("❌ Failed to join: %v", err)
	} else {
		scene.SetLocalID(sess.SessionID())
		scene.SetConnected(true)
	}
	defer sess.Close()

	sender := input.NewSender(sampler, sess, netCfg.InputPeriod())
	sender.Start()
	defer sender.Stop()

	renderer := render.NewRenderer(render.Config{
		Width:  viewCfg.Width,
		Height: viewCfg.Height,
		FOV:    render.DefaultConfig().FOV,
	})

	// A lost session keeps the window open with the HUD showing it.
	win := frontend.New(scene, sampler, renderer, frontend.Options{
		TPS:     viewCfg.FPS,
		ShowTPS: os.Getenv("SHOW_TPS") == "true",
		Done:    ctx.Done(),
	})

	var debugServer *api.Server
	if appConfig.Debug.Enabled {
		debugServer = api.NewServer(appConfig.Debug, api.RouterConfig{
			Scene:   scene,
			Session: sess,
			Stats: map[string]api.StatsSource{
				"input":  sender,
				"window": win,
			},
		})
		if err := debugServer.Start(); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
			debugServer = nil
		}
	}

	log.Println("✅ Client ready! Press Esc or Ctrl+C to quit.")
	if err := frontend.Run(win); err != nil {
		log.Printf("⚠️ Window closed with error: %v", err)
	}

	log.Println("🛑 Shutting down...")
	if debugServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := debugServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️ Debug server shutdown: %v", err)
		}
		cancel()
	}
	log.Println("👋 Goodbye!")
}
