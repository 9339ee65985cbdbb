package main

import (
	"fmt"
	"os"

	"github.com/andesco/sc-proxy/handlers"
	"github.com/andesco/sc-proxy/pkg/logging"
	"github.com/andesco/sc-proxy/pkg/proxy"

	"github.com/akamensky/argparse"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	parser := argparse.NewParser("sc-proxy", "CORS forwarding proxy for the SoundCloud API")

	port := parser.String("p", "port", &argparse.Options{
		Required: false,
		Default:  getenv("PORT", "8080"),
		Help:     "Port the webserver will listen on",
	})
	configPath := parser.String("c", "config", &argparse.Options{
		Required: false,
		Default:  os.Getenv("CONFIG"),
		Help:     "Path to a YAML config file. Environment variables override its values",
	})
	prefork := parser.Flag("P", "prefork", &argparse.Options{
		Required: false,
		Help:     "Spawn multiple server instances",
	})
	logLevel := parser.String("l", "log-level", &argparse.Options{
		Required: false,
		Default:  getenv("LOG_LEVEL", "info"),
		Help:     "Log level: trace, debug, info, warn or error",
	})

	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	if err := logging.Configure(*logLevel, os.Getenv("LOG_FORMAT")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := proxy.LoadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	fwd, err := proxy.New(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("could not create forwarder")
	}

	logrus.WithFields(logrus.Fields{
		"domains": fwd.AllowList().Domains(),
		"match":   fwd.AllowList().Mode(),
		"timeout": cfg.Timeout.String(),
	}).Info("allow-list loaded")

	if handlers.IsLambda() {
		lambda.Start(handlers.NewLambdaHandler(fwd, logrus.StandardLogger()).Invoke)
		return
	}

	app := fiber.New(fiber.Config{
		Prefork:               *prefork,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(handlers.RequestLogger(logrus.StandardLogger()))
	app.All("/*", handlers.Proxy(fwd))

	logrus.Infof("listening on :%s", *port)
	if err := app.Listen(":" + *port); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
