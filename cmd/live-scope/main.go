package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tracklapse/tracklapse/pkg/config"
	"github.com/tracklapse/tracklapse/pkg/coordinates"
	"github.com/tracklapse/tracklapse/pkg/military"
	"github.com/tracklapse/tracklapse/pkg/trackapi"
)

var (
	// Version information (set by build flags)
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	serviceURL := flag.String("service", "", "Track service base URL (overrides config)")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("live-scope version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *serviceURL != "" {
		cfg.TrackService.BaseURL = *serviceURL
	}

	client := trackapi.NewClient(cfg.TrackService.BaseURL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = client.Health(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Track service not reachable at %s: %v", cfg.TrackService.BaseURL, err)
	}

	home := coordinates.Geographic{
		Latitude:  cfg.Observer.Latitude,
		Longitude: cfg.Observer.Longitude,
		Altitude:  cfg.Observer.Elevation,
	}
	proj := coordinates.NewSceneProjector(home, cfg.Viewer.UnitsPerNauticalMile)

	// The military database is best-effort: the scope runs without it,
	// just without military highlighting.
	milDB := military.New(cfg.Military.DatabaseURL)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), time.Minute)
	if err := milDB.Load(loadCtx); err != nil {
		log.Printf("Military database unavailable: %v", err)
	}
	loadCancel()

	siteName := cfg.Observer.Name
	if siteName == "" {
		siteName = fmt.Sprintf("%.4f°, %.4f°", cfg.Observer.Latitude, cfg.Observer.Longitude)
	}

	app := NewApp(&AppConfig{
		Client:    client,
		Projector: proj,
		Military:  milDB,
		Home:      home,
		SiteName:  siteName,
	})

	if err := app.Run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func printHelp() {
	fmt.Println("live-scope - Live traffic plan view for tracklapse")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  live-scope [options]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to configuration file (default: configs/config.json)")
	fmt.Println("  -service string")
	fmt.Println("        Track service base URL (overrides config)")
	fmt.Println("  -version")
	fmt.Println("        Show version information")
	fmt.Println("  -help")
	fmt.Println("        Show this help message")
	fmt.Println()
	fmt.Println("KEYBOARD SHORTCUTS:")
	fmt.Println("  ↑/↓ or j/k     Select aircraft")
	fmt.Println("  m              Toggle military-only display")
	fmt.Println("  +/-            Zoom in/out")
	fmt.Println("  0              Reset zoom")
	fmt.Println("  q or Ctrl+C    Quit")
}
