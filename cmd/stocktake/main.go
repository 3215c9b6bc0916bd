// Command stocktake is a small CLI over the Stocktake Go SDK: it stores
// an initial token pair, lists and adjusts inventory, watches the live
// event stream and exercises the public preview surface. Its main job in
// this repo is to drive every SDK path end to end against a real or mock
// backend.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/stocktakehq/stocktake-go/api"
	"github.com/stocktakehq/stocktake-go/auth"
	"github.com/stocktakehq/stocktake-go/credentials"
	"github.com/stocktakehq/stocktake-go/internal/logger"
)

const usage = `Usage: stocktake [flags] <command>

Commands:
  login                 store an initial token pair
  items list            list inventory items
  items adjust <id> <delta>  adjust an item's quantity
  preview <id>          fetch a preview item (no auth required)
  watch                 stream live inventory events
  refresh               force one token refresh
  logout                clear stored credentials

Flags:
`

type config struct {
	APIURL          string `mapstructure:"api_url"`
	TokenURL        string `mapstructure:"token_url"`
	ClientID        string `mapstructure:"client_id"`
	CredentialsPath string `mapstructure:"credentials_path"`
	CredentialsEnv  bool   `mapstructure:"credentials_env"`
	LogLevel        string `mapstructure:"log_level"`
}

// loadConfig layers flags over environment over an optional config file
// over defaults.
func loadConfig(configFile string, overrides map[string]string) (config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetDefault("api_url", "https://api.stocktake.dev")
	v.SetDefault("token_url", "https://api.stocktake.dev/oauth/token")
	v.SetDefault("client_id", "stocktake-app")
	v.SetDefault("credentials_path", credentials.DefaultPath())
	v.SetDefault("credentials_env", false)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("stocktake")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range overrides {
		if value != "" {
			v.Set(key, value)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

type app struct {
	cfg     config
	log     zerolog.Logger
	store   credentials.Store
	session *auth.Session
	gate    *auth.Gate
	client  *api.Client
	public  *api.PublicClient
}

func newApp(cfg config, log zerolog.Logger) *app {
	var store credentials.Store
	if cfg.CredentialsEnv {
		store = credentials.NewEnv()
		log.Debug().Msg("Using environment credentials")
	} else {
		store = credentials.NewFile(cfg.CredentialsPath)
		log.Debug().Str("path", cfg.CredentialsPath).Msg("Using file credentials")
	}

	session := auth.NewSession()
	refresher := auth.NewRefresher(log, cfg.TokenURL, cfg.ClientID)
	gate := auth.NewGate(log, store, refresher, session)

	clientCfg := api.Config{
		BaseURL: cfg.APIURL,
		Store:   store,
		Gate:    gate,
		Session: session,
		Logger:  log,
	}

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		session: session,
		gate:    gate,
		client:  api.New(clientCfg),
		public:  api.NewPublic(clientCfg),
	}
}

func main() {
	_ = godotenv.Load()

	flags := flag.NewFlagSet("stocktake", flag.ExitOnError)
	configFile := flags.String("config", "", "Path to a YAML config file")
	apiURL := flags.String("api-url", "", "Stocktake API base URL")
	tokenURL := flags.String("token-url", "", "OAuth token endpoint URL")
	clientID := flags.String("client-id", "", "OAuth client ID")
	credsPath := flags.String("credentials", "", "Credentials file path")
	logLevel := flags.String("log-level", "", "Log level")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	flags.Parse(os.Args[1:])

	cfg, err := loadConfig(*configFile, map[string]string{
		"api_url":          *apiURL,
		"token_url":        *tokenURL,
		"client_id":        *clientID,
		"credentials_path": *credsPath,
		"log_level":        *logLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	a := newApp(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Print the sign-in hint once, no matter which call trips the signal
	go func() {
		select {
		case <-a.session.ExpiredC():
			fmt.Fprintln(os.Stderr, "Your session has expired, please run `stocktake login` again.")
		case <-ctx.Done():
		}
	}()

	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	if err := a.run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "login":
		return a.login()
	case "items":
		if len(args) < 2 {
			return errors.New("usage: stocktake items {list | adjust <id> <delta>}")
		}
		switch args[1] {
		case "list":
			return a.listItems(ctx)
		case "adjust":
			if len(args) != 4 {
				return errors.New("usage: stocktake items adjust <id> <delta>")
			}
			delta, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("delta must be an integer: %w", err)
			}
			return a.adjustItem(ctx, args[2], delta)
		default:
			return fmt.Errorf("unknown items command %q", args[1])
		}
	case "preview":
		if len(args) != 2 {
			return errors.New("usage: stocktake preview <id>")
		}
		return a.preview(ctx, args[1])
	case "watch":
		return a.watch(ctx)
	case "refresh":
		return a.refresh(ctx)
	case "logout":
		return a.logout()
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// login stores a token pair obtained out of band (the PKCE sign-in flow
// lives in the apps, not here). The access token may be omitted; the
// first request then refreshes immediately.
func (a *app) login() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Access token (optional): ")
	accessToken, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read access token: %w", err)
	}
	accessToken = strings.TrimSpace(accessToken)

	var refreshToken string
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print("Refresh token: ")
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read refresh token: %w", err)
		}
		refreshToken = strings.TrimSpace(string(secret))
	} else {
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read refresh token: %w", err)
		}
		refreshToken = strings.TrimSpace(line)
	}
	if refreshToken == "" {
		return errors.New("a refresh token is required")
	}

	// Without a known expiry the access token counts as expired and the
	// first request refreshes, which also validates the pair
	set := credentials.TokenSet{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if err := a.store.Save(set); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	a.session.Reset()

	a.log.Info().Msg("✅ Credentials saved")
	return nil
}

func (a *app) listItems(ctx context.Context) error {
	items, err := a.client.Items().List(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No items.")
		return nil
	}
	for _, item := range items {
		fmt.Printf("%-36s  %-12s  %5d  %s\n", item.ID, item.SKU, item.Quantity, item.Name)
	}
	return nil
}

func (a *app) adjustItem(ctx context.Context, id string, delta int) error {
	item, err := a.client.Items().Adjust(ctx, id, delta)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s): quantity now %d\n", item.Name, item.SKU, item.Quantity)
	return nil
}

func (a *app) preview(ctx context.Context, id string) error {
	item, err := a.public.Preview().Item(ctx, id)
	if err != nil {
		return err
	}
	visibility := "private"
	if item.Public {
		visibility = "public"
	}
	fmt.Printf("%s: %s (%s)\n", item.ID, item.Name, visibility)
	return nil
}

func (a *app) watch(ctx context.Context) error {
	events, err := a.client.Events().Watch(ctx)
	if err != nil {
		return err
	}
	a.log.Info().Msg("Watching inventory events, Ctrl-C to stop")
	for evt := range events {
		fmt.Printf("%s  %-14s  item=%s quantity=%d\n",
			evt.At.Format(time.RFC3339), evt.Type, evt.ItemID, evt.Quantity)
	}
	// Channel closure after Ctrl-C is a clean exit
	return nil
}

func (a *app) refresh(ctx context.Context) error {
	if err := a.gate.ForceRefresh(ctx); err != nil {
		return err
	}
	a.log.Info().Msg("✅ Token refreshed")
	return nil
}

func (a *app) logout() error {
	if err := a.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	a.log.Info().Msg("Logged out")
	return nil
}

// describe maps an error to the user-facing message.
func describe(err error) string {
	switch api.KindOf(err) {
	case api.KindUnauthorized, api.KindRefreshFailure:
		return "please sign in again (`stocktake login`)"
	case api.KindAuthRequired:
		return "this content requires signing in"
	case api.KindForbidden:
		return "you don't have access to this resource"
	case api.KindNetworkFailure:
		return fmt.Sprintf("network problem, try again: %v", err)
	default:
		return err.Error()
	}
}
