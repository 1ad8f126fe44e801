package catalog

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"github.com/judyrop/epicerie-backend/models"
)

const seedImage = "/placeholder.svg?height=200&width=200"

var seedCategories = []models.Category{
	{Name: "Fruits et Légumes", Icon: "Apple"},
	{Name: "Produits Laitiers", Icon: "Milk"},
	{Name: "Fromages", Icon: "ChevronsUp"},
	{Name: "Charcuterie", Icon: "Beef"},
	{Name: "Vins", Icon: "Grape"},
	{Name: "Boissons", Icon: "Beer"},
	{Name: "Épicerie Fine", Icon: "Coffee"},
}

type seedProduct struct {
	name, description, price, category string
}

var seedProducts = []seedProduct{
	{"Fromage de chèvre", "Fromage de chèvre artisanal produit localement. Texture crémeuse et goût authentique.", "6.50", "Fromages"},
	{"Vin rouge bio", "Vin rouge biologique de la région, notes de fruits rouges et tanins équilibrés.", "12.90", "Vins"},
	{"Pain au levain", "Pain au levain traditionnel, cuit au feu de bois. Mie aérée et croûte croustillante.", "3.80", "Épicerie Fine"},
	{"Pommes Gala", "Pommes Gala cultivées sans pesticides dans un verger local. Croquantes et juteuses.", "3.20", "Fruits et Légumes"},
	{"Yaourt nature", "Yaourt nature onctueux fabriqué avec du lait entier de vaches élevées en pâturage.", "2.50", "Produits Laitiers"},
	{"Jambon sec", "Jambon sec affiné pendant 12 mois, peu salé et très savoureux.", "7.90", "Charcuterie"},
	{"Jus de pomme", "Jus de pomme pressé à froid, sans sucre ajouté ni conservateurs.", "3.50", "Boissons"},
	{"Miel local", "Miel toutes fleurs récolté dans les environs, texture crémeuse et goût délicat.", "8.20", "Épicerie Fine"},
}

// SeedResult counts what Seed inserted.
type SeedResult struct {
	Categories int `json:"categories"`
	Products   int `json:"products"`
}

// Seed inserts the starter catalog. Rows that fail are logged and skipped.
func (s *Store) Seed(ctx context.Context) SeedResult {
	var res SeedResult
	ids := make(map[string]string, len(seedCategories))

	for _, c := range seedCategories {
		category := c
		if err := s.CreateCategory(ctx, &category); err != nil {
			log.Printf("seed: failed to insert category %s: %v", c.Name, err)
			continue
		}
		ids[category.Name] = category.ID
		res.Categories++
	}

	for _, p := range seedProducts {
		categoryID, ok := ids[p.category]
		if !ok {
			log.Printf("seed: category not found for product %s", p.name)
			continue
		}
		product := models.Product{
			Name:        p.name,
			Description: p.description,
			Price:       decimal.RequireFromString(p.price),
			CategoryID:  &categoryID,
			ImageURL:    seedImage,
			InStock:     true,
		}
		if err := s.CreateProduct(ctx, &product); err != nil {
			log.Printf("seed: failed to insert product %s: %v", p.name, err)
			continue
		}
		res.Products++
	}
	return res
}
