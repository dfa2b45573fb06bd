// Package httpapi serves the bot's health and status endpoints.
package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/serpens2/weather-bot/internal/scheduler"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Counter counts registered users.
type Counter interface {
	CountUsers(ctx context.Context) (int, error)
}

// Store is the part of the user store the probes read.
type Store interface {
	Pinger
	Counter
}

// Jobs lists scheduled notification jobs.
type Jobs interface {
	Len() int
	Jobs() []scheduler.Job
}

// Sessions reports registrations in progress.
type Sessions interface {
	Len() int
}

// Deps are the collaborators the endpoints read from.
type Deps struct {
	Store    Store
	Jobs     Jobs
	Sessions Sessions
	Log      *zap.Logger
}

const probeTimeout = 2 * time.Second

// New builds the Fiber app with all routes registered.
func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-bot",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})
	app.Use(recover.New())
	RegisterRoutes(app, d)
	return app
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/readyz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			d.Log.Warn("readiness probe failed", zap.Error(err))
			return fiber.NewError(fiber.StatusServiceUnavailable, "store unavailable")
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/stats", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
		defer cancel()
		users, err := d.Store.CountUsers(ctx)
		if err != nil {
			d.Log.Error("count users failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "failed to count users")
		}
		return c.JSON(fiber.Map{
			"users":    users,
			"jobs":     d.Jobs.Len(),
			"sessions": d.Sessions.Len(),
		})
	})

	v1.Get("/jobs", func(c *fiber.Ctx) error {
		jobs := d.Jobs.Jobs()
		out := make([]fiber.Map, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, fiber.Map{"chatID": j.ChatID, "at": j.At()})
		}
		return c.JSON(out)
	})
}
