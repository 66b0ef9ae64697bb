// Package main is a terminal point-of-sale client. It bootstraps the store
// catalog over HTTP, keeps its stock snapshot fresh over WebSocket, and
// submits carts to the sales endpoint.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"kassa/internal/core/id"
	"kassa/internal/core/types"
	"kassa/internal/domain/product"
	"kassa/internal/events"
	"kassa/internal/pos"
	"kassa/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "warn"),
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	baseURL := getEnv("KASSA_URL", "http://localhost:8080")
	token := mustEnv("KASSA_TOKEN")
	storeID, err := id.Parse(mustEnv("KASSA_STORE_ID"))
	if err != nil {
		fmt.Println("KASSA_STORE_ID must be a UUID")
		os.Exit(1)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetTimeout(10 * time.Second)

	cache := pos.NewCache(storeID)

	if err := loadCatalog(client, cache); err != nil {
		fmt.Printf("failed to load catalog: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listenEvents(ctx, log, baseURL, token, cache)

	fmt.Printf("loaded %d products. commands: list, cart, add <sku>, del <sku>, checkout [discount], quit\n",
		len(cache.Products()))

	repl(client, cache)
}

func loadCatalog(client *resty.Client, cache *pos.Cache) error {
	var body struct {
		Items []product.StoreProduct `json:"items"`
	}

	resp, err := client.R().SetResult(&body).Get("/api/v1/products")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode(), resp.String())
	}

	cache.Load(body.Items)
	return nil
}

// listenEvents keeps the stock snapshot fresh. The connection is re-dialed
// with backoff; between reconnects the cache just serves stale ceilings.
func listenEvents(ctx context.Context, log *logger.Logger, baseURL, token string, cache *pos.Cache) {
	wsURL, err := toWebSocketURL(baseURL, token)
	if err != nil {
		log.Errorw("bad server url", "error", err)
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			log.Warnw("event stream unavailable, retrying", "error", err)
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		readEvents(conn, cache)
		_ = conn.Close()
	}
}

func readEvents(conn *websocket.Conn, cache *pos.Cache) {
	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		if frame.Event != string(events.KindStockUpdate) {
			continue
		}

		var payload events.StockUpdatePayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			continue
		}
		cache.ApplyStockUpdate(payload)
	}
}

func toWebSocketURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

func repl(client *resty.Client, cache *pos.Cache) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return
		case "list":
			for _, p := range cache.Products() {
				fmt.Printf("  %-12s %-24s %8s  stock:%d\n", p.SKU, p.Name, p.SellingPrice, p.StockQuantity)
			}
		case "cart":
			printCart(cache)
		case "add":
			mutateLine(cache, fields, cache.AddItem)
		case "del":
			mutateLine(cache, fields, cache.Remove)
		case "checkout":
			checkout(client, cache, fields)
		default:
			fmt.Println("unknown command")
		}
	}
}

func mutateLine(cache *pos.Cache, fields []string, op func(id.ID) error) {
	if len(fields) < 2 {
		fmt.Println("usage:", fields[0], "<sku>")
		return
	}

	productID, ok := findBySKU(cache, fields[1])
	if !ok {
		fmt.Println("unknown sku:", fields[1])
		return
	}
	if err := op(productID); err != nil {
		fmt.Println(err)
	}
}

func findBySKU(cache *pos.Cache, sku string) (id.ID, bool) {
	for _, p := range cache.Products() {
		if strings.EqualFold(p.SKU, sku) {
			return p.ProductID, true
		}
	}
	return id.Nil(), false
}

func printCart(cache *pos.Cache) {
	for _, line := range cache.Lines() {
		fmt.Printf("  %dx %-24s %8s\n", line.Quantity, line.ProductName, line.Total)
	}
	totals := cache.CartTotals()
	fmt.Printf("  subtotal %s  tax %s  total %s\n", totals.Subtotal, totals.TaxAmount, totals.Total)
}

func checkout(client *resty.Client, cache *pos.Cache, fields []string) {
	discount := types.Zero()
	if len(fields) > 1 {
		parsed, err := types.NewMoneyFromString(fields[1])
		if err != nil {
			fmt.Println("bad discount:", fields[1])
			return
		}
		discount = parsed
	}

	items, err := cache.Checkout()
	if err != nil {
		fmt.Println(err)
		return
	}

	payload := map[string]any{
		"items":         items,
		"paymentMethod": "cash",
		"discount":      discount,
	}

	var created struct {
		SaleNumber string      `json:"saleNumber"`
		Total      types.Money `json:"total"`
	}
	resp, err := client.R().SetBody(payload).SetResult(&created).Post("/api/v1/sales")
	if err != nil {
		fmt.Println("checkout failed:", err)
		return
	}
	if resp.StatusCode() != http.StatusCreated {
		fmt.Printf("checkout rejected (%d): %s\n", resp.StatusCode(), resp.String())
		return
	}

	cache.Clear()
	fmt.Printf("sale %s completed, total %s\n", created.SaleNumber, created.Total)
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
