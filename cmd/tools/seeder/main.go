package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/noah-isme/bundle-pricing/internal/bundle"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	products := seedProducts(db)
	seedDefinitions(db, products)

	log.Println("Seeding completed successfully!")
}

type demoProduct struct {
	Key      string
	Name     string
	Price    int64
	TaxClass string
	InStock  bool
}

func seedProducts(db *sql.DB) map[string]uuid.UUID {
	products := []demoProduct{
		{"beans", "Espresso Beans 250g", 1250, "reduced", true},
		{"grinder", "Hand Grinder", 5400, "standard", true},
		{"press", "French Press", 3000, "standard", true},
		{"mug", "Stoneware Mug", 900, "standard", true},
		{"filters", "Paper Filters x100", 450, "reduced", true},
		{"kettle", "Gooseneck Kettle", 6200, "standard", false},
	}

	fmt.Println("Seeding Products...")
	ids := make(map[string]uuid.UUID, len(products))
	for _, p := range products {
		// Stable ids so repeated runs upsert in place.
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("bundle-pricing:product:"+p.Key))
		_, err := db.Exec(`
			INSERT INTO products (id, name, price, tax_class, in_stock)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				price = EXCLUDED.price,
				tax_class = EXCLUDED.tax_class,
				in_stock = EXCLUDED.in_stock;
		`, id, p.Name, p.Price, p.TaxClass, p.InStock)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Name, err)
			continue
		}
		ids[p.Key] = id
	}
	return ids
}

func seedDefinitions(db *sql.DB, products map[string]uuid.UUID) {
	bundleID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("bundle-pricing:bundle:starter-kit"))
	def := bundle.Definition{
		BundleID: bundleID,
		Lines: []bundle.LineConfig{
			{
				ProductID:  products["beans"],
				MinQty:     1,
				MaxQty:     10,
				DefaultQty: 2,
				Tiers: []bundle.VolumeTier{
					{MinQty: 4, Kind: bundle.DiscountPercent, Value: 500},
					{MinQty: 8, Kind: bundle.DiscountPercent, Value: 1000},
				},
			},
			{ProductID: products["press"], MinQty: 1, MaxQty: 1, DefaultQty: 1},
			{
				ProductID:  products["filters"],
				MinQty:     0,
				MaxQty:     5,
				DefaultQty: 1,
				Tiers: []bundle.VolumeTier{
					{MinQty: 3, Kind: bundle.DiscountFixed, Value: 50},
				},
			},
			{ProductID: products["mug"], MinQty: 0, MaxQty: 4, DefaultQty: 0},
		},
		DiscountBps:     750,
		EnableBundleQty: true,
		ShowSavings:     true,
	}
	def = bundle.Normalize(def)

	raw, err := json.Marshal(def)
	if err != nil {
		log.Fatalf("Failed to encode bundle definition: %v", err)
	}

	fmt.Println("Seeding Bundle Definitions...")
	_, err = db.Exec(`
		INSERT INTO bundle_definitions (bundle_id, config, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (bundle_id) DO UPDATE SET
			config = EXCLUDED.config,
			updated_at = now();
	`, def.BundleID, raw)
	if err != nil {
		log.Fatalf("Failed to seed bundle definition: %v", err)
	}
	log.Printf("Seeded bundle %s", def.BundleID)
}
