package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	shieldcache "github.com/shield-cache/shield-cache"
	"github.com/shield-cache/shield-cache/generation"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	configFilenameFlag string
	portFlag           int
	originFlag         string
	providerFlag       string
	generationFlag     string
	modeFlag           string
	verbosityTraceFlag bool
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.StringVar(&originFlag, "origin", "", "Origin to intercept for (overrides config)")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&providerFlag, "provider", "", "Cache generation provider to use (overrides config)")
	flag.StringVar(&generationFlag, "generation", "", "Cache generation id (overrides config)")
	flag.StringVar(&modeFlag, "mode", "", "Strategy family: network-first or cache-first (overrides config)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
}

func main() {
	flag.Parse()

	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: os.Stdout})

	var config Config
	if configFilenameFlag != "" {
		var err error
		config, err = getConfig(configFilenameFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not read config file")
		}
	}

	if originFlag != "" {
		config.Origin = originFlag
	}
	if providerFlag != "" {
		config.Provider = providerFlag
	}
	if generationFlag != "" {
		config.Generation = generationFlag
	}
	if modeFlag != "" {
		config.Mode = modeFlag
	}
	if config.Port <= 0 {
		config.Port = portFlag
	}

	if config.Origin == "" {
		log.Fatal().Msg("Please specify origin")
	}
	if config.Generation == "" {
		log.Fatal().Msg("Please specify cache generation id")
	}

	originURL, err := url.Parse(config.Origin)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse origin")
	}

	// use configured provider, default to sqlite
	var store generation.Store
	switch config.Provider {
	case "sqlite", "":
		store = generation.NewSQLiteStore(config.DBPath)
	case "memory":
		store = generation.NewMemoryStore()
	case "leveldb":
		path := config.DBPath
		if path == "" {
			path = "./shield-cache.ldb"
		}
		ldb, err := generation.NewLevelDBStore(path)
		if err != nil {
			log.Fatal().Err(err).Msg("Could not open leveldb store")
		}
		defer ldb.Close()
		store = ldb
	default:
		log.Fatal().Msgf("Unsupported cache generation provider: %s", config.Provider)
	}

	interceptor, err := shieldcache.CreateInterceptor(shieldcache.Config{
		Store:           store,
		OriginURL:       *originURL,
		PublicOrigin:    config.PublicOrigin,
		Generation:      config.Generation,
		Assets:          config.Assets,
		Mode:            shieldcache.Mode(strings.ToLower(config.Mode)),
		OfflinePath:     config.OfflinePath,
		ShellPath:       config.ShellPath,
		SensitivePrefix: config.SensitivePrefix,
		Logger:          &log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create interceptor")
	}

	if err := interceptor.Install(context.Background()); err != nil {
		if interceptor.CurrentGeneration() == "" {
			log.Fatal().Err(err).Msg("Install failed with no previous generation to serve")
		}
		log.Warn().Err(err).Msg("Install failed, keeping previous generation")
	}

	router := chi.NewRouter()
	router.Post("/shield/message", interceptor.Notifier().MessageHandler())
	router.Get("/shield/events", interceptor.Notifier().EventsHandler())
	router.Handle("/*", interceptor)

	addr := fmt.Sprintf(":%d", config.Port)
	log.Info().Str("addr", addr).Str("generation", config.Generation).Msg("Listening")
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
