package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/muesli/termenv"
	_ "go.uber.org/automaxprocs"

	"github.com/ellypaws/macrotune/pkg/api"
	"github.com/ellypaws/macrotune/pkg/cache"
	"github.com/ellypaws/macrotune/pkg/config"
	"github.com/ellypaws/macrotune/pkg/db"
	"github.com/ellypaws/macrotune/pkg/generate"
	"github.com/ellypaws/macrotune/pkg/logger"
	"github.com/ellypaws/macrotune/pkg/schema"
)

var log = logger.New("server")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := config.Load("")
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(logger.Level(c.LogLevel))

	database, err := db.New(ctx, c.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open %s: %v", c.DatabasePath, err)
	}
	defer database.Close()

	run := api.RunConfig{
		Jobs:              database,
		Port:              uint(c.Port),
		LogLevel:          logger.Level(c.LogLevel),
		RequestsPerSecond: c.RequestsPerSecond,
		Middlewares:       middlewares,
		Extra:             []func(e *echo.Echo){banner(c)},
	}

	if validator, err := schema.Load(c.SchemaPath); err != nil {
		log.Warnf("warning: schema not loaded, /schema and /macro/validate are disabled: %v", err)
	} else {
		run.Validator = validator
	}

	if generator, err := newGenerator(ctx, c, run.Validator); err != nil {
		log.Warnf("warning: /macro/generate is disabled: %v", err)
	} else {
		run.Generator = generator
	}

	if err := api.Run(ctx, run); err != nil {
		log.Fatal(err)
	}
}

func newGenerator(ctx context.Context, c *config.Config, validator *schema.Validator) (*generate.Generator, error) {
	client, err := c.Client()
	if err != nil {
		return nil, err
	}
	model, err := c.ModelName()
	if err != nil {
		return nil, err
	}
	check, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := generate.CheckModel(check, client, model); err != nil {
		log.Warnf("warning: could not confirm model %s: %v", model, err)
	}

	system := c.SystemPrompt
	if system == "" {
		system = generate.DefaultSystem
	}
	return &generate.Generator{
		Client:    client,
		Model:     model,
		System:    system,
		Cache:     cache.Select(ctx, c.RedisURL, log),
		Validator: validator,
		Log:       logger.New("generate"),
	}, nil
}

var middlewares = []echo.MiddlewareFunc{
	middleware.RemoveTrailingSlash(),
	middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format:           `${time_custom}     	${status} ${method}  ${host}${uri} in ${latency_human} from ${remote_ip} ${error}` + "\n",
		CustomTimeFormat: time.DateTime,
	}),
	middleware.Gzip(),
	middleware.Decompress(),
	middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.POST},
	}),
}

func banner(c *config.Config) func(e *echo.Echo) {
	return func(e *echo.Echo) {
		colors := []struct {
			text  string
			color string
		}{
			{"m", "#447294"},
			{"a", "#5987a8"},
			{"c", "#6f9cbd"},
			{"r", "#84b1d1"},
			{"o", "#a0c0d6"},
			{"t", "#c2c9cc"},
			{"u", "#d2cdc6"},
			{"n", "#e3d2c1"},
			{"e", "#f4d6bc"},
		}

		var coloredText strings.Builder
		for _, ansi := range colors {
			coloredText.WriteString(termenv.String(ansi.text).Foreground(termenv.RGBColor(ansi.color)).Bold().String())
		}

		e.Logger.Infof("%s %s", coloredText.String(), "https://github.com/ellypaws")
		e.Logger.Infof("        port: %d", c.Port)
		e.Logger.Infof("    database: %s", c.DatabasePath)
		e.Logger.Infof("      schema: %s", c.SchemaPath)
		e.Logger.Infof("    base url: %s", c.BaseURL)
	}
}
