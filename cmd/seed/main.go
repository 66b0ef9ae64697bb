// Package main seeds a demo company with users, products and stock, then
// prints ready-to-use access tokens for manual testing.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"kassa/internal/core/id"
	"kassa/internal/domain/auth"
	"kassa/internal/infrastructure/storage/postgres"
	"kassa/pkg/logger"
)

type seedProduct struct {
	sku      string
	name     string
	price    string
	taxRate  string
	quantity int64
	minQty   int64
}

var demoProducts = []seedProduct{
	{"COFFEE-250", "Ground Coffee 250g", "1000", "10", 40, 5},
	{"TEA-100", "Green Tea 100g", "500", "10", 25, 5},
	{"MILK-1L", "Milk 1L", "300", "0", 60, 10},
	{"BREAD-WHT", "White Bread", "200", "0", 30, 8},
	{"CHOC-DARK", "Dark Chocolate 90g", "450", "10", 12, 3},
}

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	companyID := id.New()
	storeID := id.New()
	cashierID := id.New()
	managerID := id.New()

	passwordHash, err := bcrypt.GenerateFromPassword([]byte("demo1234"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalw("failed to hash password", "error", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, company_id, store_id, email, password_hash, roles, permissions, active)
		VALUES
			($1, $3, $4, 'cashier@demo.kassa', $5, '{cashier}',
			 '{sales:create,sales:read,stock:read,products:read,events:subscribe}', true),
			($2, $3, $4, 'manager@demo.kassa', $5, '{manager}',
			 '{sales:create,sales:read,stock:read,stock:adjust,products:read,events:subscribe}', true)
	`, cashierID, managerID, companyID, storeID, passwordHash)
	if err != nil {
		log.Fatalw("failed to seed users", "error", err)
	}

	for _, p := range demoProducts {
		productID := id.New()

		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, company_id, sku, name, selling_price, tax_rate, active)
			VALUES ($1, $2, $3, $4, $5, $6, true)
		`, productID, companyID, p.sku, p.name, p.price, p.taxRate)
		if err != nil {
			log.Fatalw("failed to seed product", "sku", p.sku, "error", err)
		}

		_, err = pool.Exec(ctx, `
			INSERT INTO stock_records (product_id, store_id, company_id, quantity, min_quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, productID, storeID, companyID, p.quantity, p.minQty)
		if err != nil {
			log.Fatalw("failed to seed stock", "sku", p.sku, "error", err)
		}
	}

	log.Infow("demo data seeded",
		"company_id", companyID,
		"store_id", storeID,
		"products", len(demoProducts),
	)

	// Tokens for manual poking; the identity service issues real ones.
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(getEnv("JWT_SECRET", "your-secret-key-change-in-production")))

	cashierToken, _, err := jwtService.GenerateAccessToken(
		cashierID.String(), companyID.String(), storeID.String(), "cashier@demo.kassa",
		[]string{"cashier"},
		[]string{"sales:create", "sales:read", "stock:read", "products:read", "events:subscribe"},
		false,
	)
	if err != nil {
		log.Fatalw("failed to generate token", "error", err)
	}

	managerToken, _, err := jwtService.GenerateAccessToken(
		managerID.String(), companyID.String(), storeID.String(), "manager@demo.kassa",
		[]string{"manager"},
		[]string{"sales:create", "sales:read", "stock:read", "stock:adjust", "products:read", "events:subscribe"},
		false,
	)
	if err != nil {
		log.Fatalw("failed to generate token", "error", err)
	}

	fmt.Println("cashier token:", cashierToken)
	fmt.Println("manager token:", managerToken)
	fmt.Println("store id:     ", storeID)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
