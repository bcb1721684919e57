// Command seeder loads products and discount codes from a JSON export and can
// mint admin bearer tokens for local use.
package main

import (
	"bytes"
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-beaute/internal/auth"
	"github.com/noah-isme/backend-beaute/internal/catalog"
	"github.com/noah-isme/backend-beaute/internal/db"
	dbgen "github.com/noah-isme/backend-beaute/internal/db/gen"
	"github.com/noah-isme/backend-beaute/internal/obs"
)

//go:embed seed.json
var defaultSeed []byte

func main() {
	file := flag.String("file", "", "seed document (defaults to the bundled sample catalog)")
	migrate := flag.Bool("migrate", false, "apply migrations before seeding")
	tokenFor := flag.String("admin-token", "", "print an admin bearer token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "lifetime of the token minted by -admin-token")
	flag.Parse()

	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info")

	if *tokenFor != "" {
		if err := printAdminToken(os.Stdout, *tokenFor, *tokenTTL); err != nil {
			logger.Fatal().Err(err).Msg("issue admin token")
		}
		return
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	if *migrate {
		if err := db.Migrate(dbURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
	}

	var src io.Reader = bytes.NewReader(defaultSeed)
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			logger.Fatal().Err(err).Msg("open seed file")
		}
		defer f.Close()
		src = f
	}
	seed, err := decodeSeed(src)
	if err != nil {
		logger.Fatal().Err(err).Msg("read seed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := apply(ctx, dbgen.New(pool), seed, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	purgeCatalogCache(ctx, os.Getenv("REDIS_URL"), logger)
	logger.Info().Int("products", len(seed.Products)).Int("discountCodes", len(seed.DiscountCodes)).Msg("seeding completed")
}

type upserter interface {
	UpsertProduct(ctx context.Context, arg dbgen.UpsertProductParams) (dbgen.Product, error)
	UpsertDiscountCode(ctx context.Context, arg dbgen.UpsertDiscountCodeParams) (dbgen.DiscountCode, error)
}

func apply(ctx context.Context, q upserter, seed seedFile, logger zerolog.Logger) error {
	for _, rec := range seed.Products {
		params, err := productParams(rec, logger)
		if err != nil {
			return err
		}
		if _, err := q.UpsertProduct(ctx, params); err != nil {
			return fmt.Errorf("upsert product %s: %w", params.Slug, err)
		}
	}
	for _, rec := range seed.DiscountCodes {
		params, err := discountParams(rec)
		if err != nil {
			return err
		}
		if _, err := q.UpsertDiscountCode(ctx, params); err != nil {
			return fmt.Errorf("upsert discount %s: %w", params.Code, err)
		}
	}
	return nil
}

func purgeCatalogCache(ctx context.Context, redisURL string, logger zerolog.Logger) {
	if redisURL == "" {
		return
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("parse redis url; catalog cache not purged")
		return
	}
	client := redis.NewClient(opts)
	defer client.Close()
	if err := catalog.NewCache(client, time.Minute).Purge(ctx); err != nil {
		logger.Warn().Err(err).Msg("purge catalog cache")
	}
}

func printAdminToken(w io.Writer, subject string, ttl time.Duration) error {
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET is not set")
	}
	v := auth.Verifier{
		Secret:   []byte(secret),
		Issuer:   envOr("ADMIN_JWT_ISSUER", "beaute"),
		Audience: envOr("ADMIN_JWT_AUDIENCE", "beaute-admin"),
	}
	token, err := v.Issue(subject, auth.RoleAdmin, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
