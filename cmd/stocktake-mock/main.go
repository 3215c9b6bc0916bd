package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stocktakehq/stocktake-go/internal/logger"
	"github.com/stocktakehq/stocktake-go/internal/mockapi"
)

func main() {
	addr := flag.String("addr", ":9480", "Listen address")
	clientID := flag.String("client-id", "stocktake-app", "OAuth client ID the token endpoint accepts")
	secret := flag.String("jwt-secret", "", "HS256 signing secret (random when empty)")
	tokenTTL := flag.Duration("token-ttl", 15*time.Minute, "Access token lifetime")
	seed := flag.Bool("seed", true, "Seed demo inventory data")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log := logger.New(*logLevel)
	gin.SetMode(gin.ReleaseMode)

	var secretBytes []byte
	if *secret != "" {
		secretBytes = []byte(*secret)
	}

	srv := mockapi.New(mockapi.Config{
		ClientID:  *clientID,
		JWTSecret: secretBytes,
		TokenTTL:  *tokenTTL,
		Logger:    log,
	})

	if *seed {
		shelfID := srv.SeedLocation(mockapi.Location{Name: "Shelf A", Kind: "shelf"})
		srv.SeedLocation(mockapi.Location{Name: "Cold storage", Kind: "freezer"})
		srv.SeedItem(mockapi.Item{SKU: "WIDGET-1", Name: "Widget", Quantity: 40, LocationID: shelfID, Public: true})
		srv.SeedItem(mockapi.Item{SKU: "GADGET-7", Name: "Gadget", Quantity: 12, LocationID: shelfID})

		refreshToken := srv.IssueRefreshToken("demo-user")
		srv.AllowPreview("demo-user")
		log.Info().
			Str("subject", "demo-user").
			Str("refresh_token", refreshToken).
			Msg("🔑 Seeded demo refresh token, pass it to `stocktake login`")
	}

	log.Info().
		Str("addr", *addr).
		Str("client_id", *clientID).
		Dur("token_ttl", *tokenTTL).
		Msg("Starting mock Stocktake backend")
	log.Fatal().Err(http.ListenAndServe(*addr, srv)).Msg("Server failed to start")
}
