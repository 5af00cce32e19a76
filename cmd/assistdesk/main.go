package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	apiv1 "github.com/assistdesk/assistdesk/internal/api/v1"
	"github.com/assistdesk/assistdesk/internal/pkg/env"
	"github.com/assistdesk/assistdesk/internal/pkg/jobqueue"
	"github.com/assistdesk/assistdesk/internal/pkg/router"
)

func main() {
	app, _ := NewApplication()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Info("[Main] shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Errorf("[Main] shutdown: %v", err)
		}
	}()

	jobqueue.GetManager().Start()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	jobqueue.GetManager().Stop()
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, router.Deps) {
	env.SetupEnvFile()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/assistdesk to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); err == nil {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	deps := wire(context.Background())

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "assistdesk",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	if pw := env.GetEnv("METRICS_PASSWORD", ""); pw != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				env.GetEnv("METRICS_USER", "admin"): pw,
			},
		}), monitor.New())
	}

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, deps)

	if doc, err := apiv1.LoadSpec(context.Background(), openAPICfg.FilePath); err != nil {
		log.Errorf("[OpenAPI] %v", err)
	} else {
		undocumented, unrouted := apiv1.CompareRoutes(doc, app.GetRoutes(true), "/api/v1")
		for _, r := range undocumented {
			log.Warnf("[OpenAPI] route not documented: %s", r)
		}
		for _, r := range unrouted {
			log.Warnf("[OpenAPI] documented operation has no route: %s", r)
		}
	}

	return app, deps
}
