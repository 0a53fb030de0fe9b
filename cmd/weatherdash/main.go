package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/weatherdash/internal/api"
	"github.com/lox/weatherdash/internal/dashboard"
	"github.com/lox/weatherdash/internal/imagegen"
	"github.com/lox/weatherdash/internal/ingest"
	"github.com/lox/weatherdash/internal/kv"
	"github.com/lox/weatherdash/internal/store"
	"github.com/lox/weatherdash/internal/weatherapi"
)

type CLI struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`

	APIKey  string `name:"api-key" env:"WEATHER_API_KEY" required:"" help:"weatherapi.com API key."`
	BaseURL string `name:"base-url" env:"WEATHER_API_BASE_URL" default:"https://api.weatherapi.com/v1" help:"Weather provider base URL."`
	Days    int    `default:"5" help:"Forecast days to fetch per city."`

	Storage       string `enum:"sqlite,redis,memory" default:"sqlite" env:"WEATHERDASH_STORAGE" help:"Persistence backend (${enum}). memory keeps nothing across runs."`
	DB            string `name:"db" env:"WEATHERDASH_DB" default:"data/weatherdash.db" help:"Path to SQLite database."`
	RedisAddr     string `env:"REDIS_ADDR" default:"localhost:6379" help:"Redis address."`
	RedisPassword string `env:"REDIS_PASSWORD" help:"Redis password."`
	RedisDB       int    `name:"redis-db" env:"REDIS_DB" default:"0" help:"Redis database number."`
	StorageKey    string `env:"WEATHERDASH_STORAGE_KEY" default:"weather-dashboard" help:"Key the city list is stored under."`

	NoLookup bool          `help:"Skip checking new cities against the provider."`
	Wait     time.Duration `default:"30s" help:"How long one-shot commands wait for fetches."`

	Serve   ServeCmd   `cmd:"" help:"Serve the dashboard over HTTP."`
	Add     AddCmd     `cmd:"" help:"Add a city."`
	Remove  RemoveCmd  `cmd:"" help:"Remove a city."`
	Pin     PinCmd     `cmd:"" help:"Pin or unpin a city."`
	Move    MoveCmd    `cmd:"" help:"Move a city to another position."`
	List    ListCmd    `cmd:"" help:"List cities with their latest weather."`
	Refresh RefreshCmd `cmd:"" help:"Re-fetch weather for one city, or all of them."`
}

// App is what every command runs against.
type App struct {
	Ctx  context.Context
	Dash *dashboard.Dashboard
	wait time.Duration

	closers []func() error
}

func (a *App) Close() {
	a.Dash.Close()
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Printf("close: %v", err)
		}
	}
}

func (cli *CLI) open(ctx context.Context) (*App, error) {
	app := &App{Ctx: ctx, wait: cli.Wait}

	var backend kv.Backend
	switch cli.Storage {
	case "redis":
		r, err := kv.NewRedis(ctx, cli.RedisAddr, cli.RedisPassword, cli.RedisDB)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, r.Close)
		backend = r
	case "memory":
		backend = kv.NewMemory()
	default:
		st, err := store.Open(cli.DB)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		app.closers = append(app.closers, st.Close)
		backend = st
	}

	client := weatherapi.NewClient(cli.APIKey, cli.BaseURL, cli.Days)
	cfg := dashboard.Config{
		Backend: backend,
		Key:     cli.StorageKey,
		Fetcher: client,
	}
	if !cli.NoLookup {
		cfg.Lookup = client
	}

	app.Dash = dashboard.New(cfg)
	app.Dash.Load(ctx)
	return app, nil
}

// settle waits for in-flight fetches, then prints the list.
func (a *App) settle() error {
	ctx, cancel := context.WithTimeout(a.Ctx, a.wait)
	defer cancel()
	if err := a.Dash.Wait(ctx); err != nil {
		log.Printf("gave up waiting for fetches: %v", err)
	}
	printCities(os.Stdout, a.Dash)
	return nil
}

type ServeCmd struct {
	Port         string `env:"PORT" default:"8080" help:"HTTP server port."`
	ImageDir     string `default:"data/images" help:"Directory for generated card backdrops."`
	OpenAIAPIKey string `name:"openai-api-key" env:"OPENAI_API_KEY" help:"Enables backdrop generation."`

	RefreshInterval time.Duration `env:"WEATHERDASH_REFRESH_INTERVAL" default:"0s" help:"Re-fetch every city this often (0 disables)."`
}

func (c *ServeCmd) Run(app *App) error {
	cfg := api.Config{Port: c.Port, ImageDir: c.ImageDir}
	if c.OpenAIAPIKey != "" {
		gen, err := imagegen.NewGenerator(c.OpenAIAPIKey)
		if err != nil {
			return err
		}
		cfg.Generator = gen
	}

	server := api.NewServer(app.Dash, cfg)
	scheduler := ingest.NewScheduler(app.Dash, server.Backdrops(), c.RefreshInterval)
	go scheduler.Run(app.Ctx)

	log.Printf("starting server on :%s", c.Port)
	return server.Run(app.Ctx)
}

type AddCmd struct {
	Name string `arg:"" help:"City name."`
}

func (c *AddCmd) Run(app *App) error {
	if err := app.Dash.AddCity(app.Ctx, c.Name); err != nil {
		return err
	}
	return app.settle()
}

type RemoveCmd struct {
	Name string `arg:"" help:"City name."`
}

func (c *RemoveCmd) Run(app *App) error {
	if err := app.Dash.RemoveCity(c.Name); err != nil {
		return err
	}
	return app.settle()
}

type PinCmd struct {
	Name string `arg:"" help:"City name."`
}

func (c *PinCmd) Run(app *App) error {
	if err := app.Dash.TogglePin(c.Name); err != nil {
		return err
	}
	return app.settle()
}

type MoveCmd struct {
	From int `arg:"" help:"Current position, as shown by list."`
	To   int `arg:"" help:"New position."`
}

func (c *MoveCmd) Run(app *App) error {
	app.Dash.Reorder(c.From-1, c.To-1)
	return app.settle()
}

type ListCmd struct{}

func (c *ListCmd) Run(app *App) error {
	return app.settle()
}

type RefreshCmd struct {
	Name string `arg:"" optional:"" help:"City name. Refreshes every city when omitted."`
}

func (c *RefreshCmd) Run(app *App) error {
	if c.Name == "" {
		app.Dash.RefreshAll()
	} else if err := app.Dash.Refresh(c.Name); err != nil {
		return err
	}
	return app.settle()
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("weatherdash"),
		kong.Description("City weather dashboard backed by weatherapi.com."),
		kong.UsageOnError(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := cli.open(ctx)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	err = kctx.Run(app)
	app.Close()
	kctx.FatalIfErrorf(err)
}
