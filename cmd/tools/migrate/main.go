package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/noah-isme/grocery-saver/internal/db"
	"github.com/noah-isme/grocery-saver/internal/obs"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|version")
	flag.Parse()

	logger := obs.NewLogger(os.Getenv("OBS_LOG_FORMAT"), os.Getenv("OBS_LOG_LEVEL")).With().Str("cmd", *cmd).Logger()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	switch *cmd {
	case "up":
		if err := db.Up(dbURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate up")
		}
	case "down":
		if err := db.Down(dbURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate down")
		}
	case "version":
		v, dirty, err := db.Version(dbURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate version")
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		return
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
	logger.Info().Msg("migrations applied")
}
