// Package catalog is the gorm-backed Catalog Store: products, categories,
// orders and order items.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/judyrop/epicerie-backend/apperr"
	"github.com/judyrop/epicerie-backend/models"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the tables the store relies on.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(models.All()...)
}

// ProductFilter narrows ListProducts. Zero values match everything.
type ProductFilter struct {
	CategorySlug string
	InStockOnly  bool
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, apperr.Upstream("select categories", err)
	}
	return categories, nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		return nil, lookupErr("category", id, err)
	}
	return &category, nil
}

func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, lookupErr("category", slug, err)
	}
	return &category, nil
}

func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	if category.Name == "" {
		return apperr.Validation("name", "Le nom de la catégorie est requis")
	}
	category.Slug = models.Slugify(category.Name)
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		return apperr.Upstream("insert category", err)
	}
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, id, name, icon string) (*models.Category, error) {
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperr.Validation("name", "Le nom de la catégorie est requis")
	}
	err = s.db.WithContext(ctx).Model(category).Updates(map[string]any{
		"name":       name,
		"slug":       models.Slugify(name),
		"icon":       icon,
		"updated_at": time.Now(),
	}).Error
	if err != nil {
		return nil, apperr.Upstream("update category", err)
	}
	return category, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.GetCategory(ctx, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return apperr.Upstream("detach products", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Category{}).Error; err != nil {
			return apperr.Upstream("delete category", err)
		}
		return nil
	})
}

func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	q := s.db.WithContext(ctx).Preload("Category")
	if f.InStockOnly {
		q = q.Where("in_stock = ?", true)
	}
	if f.CategorySlug != "" {
		category, err := s.GetCategoryBySlug(ctx, f.CategorySlug)
		if err != nil {
			return nil, err
		}
		q = q.Where("category_id = ?", category.ID)
	}

	var products []models.Product
	if err := q.Order("name").Find(&products).Error; err != nil {
		return nil, apperr.Upstream("select products", err)
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Preload("Category").Where("id = ?", id).First(&product).Error; err != nil {
		return nil, lookupErr("product", id, err)
	}
	return &product, nil
}

func (s *Store) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Preload("Category").Where("slug = ?", slug).First(&product).Error; err != nil {
		return nil, lookupErr("product", slug, err)
	}
	return &product, nil
}

func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	product.Slug = models.Slugify(product.Name)
	if err := s.db.WithContext(ctx).Omit("Category").Create(product).Error; err != nil {
		return apperr.Upstream("insert product", err)
	}
	return nil
}

// SaveProduct writes every column of an existing product.
func (s *Store) SaveProduct(ctx context.Context, product *models.Product) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	product.Slug = models.Slugify(product.Name)
	if err := s.db.WithContext(ctx).Omit("Category").Save(product).Error; err != nil {
		return apperr.Upstream("update product", err)
	}
	return nil
}

func (s *Store) SetProductImage(ctx context.Context, id, url, path string) error {
	err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(map[string]any{
		"image_url":  url,
		"image_path": path,
	}).Error
	return apperr.Upstream("update product image", err)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return apperr.Upstream("delete product", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product", id)
	}
	return nil
}

// ProductsWithImagePath returns the products whose image lives in the blob store.
func (s *Store) ProductsWithImagePath(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Where("image_path <> ''").Find(&products).Error; err != nil {
		return nil, apperr.Upstream("select products with images", err)
	}
	return products, nil
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := s.db.WithContext(ctx).Omit("Items").Create(order).Error; err != nil {
		return apperr.Upstream("insert order", err)
	}
	return nil
}

func (s *Store) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&items).Error; err != nil {
		return apperr.Upstream("insert order items", err)
	}
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return apperr.Upstream("delete order items", err)
		}
		res := tx.Where("id = ?", id).Delete(&models.Order{})
		if res.Error != nil {
			return apperr.Upstream("delete order", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("order", id)
		}
		return nil
	})
}

func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).Preload("Items").Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, apperr.Upstream("select orders", err)
	}
	return orders, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error; err != nil {
		return nil, lookupErr("order", id, err)
	}
	return &order, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error {
	if !status.Valid() {
		return apperr.Validation("status", fmt.Sprintf("statut invalide: %q", status))
	}
	res := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(map[string]any{
		"status":     status,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return apperr.Upstream("update order status", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

// Stats backs the admin dashboard.
type Stats struct {
	Products      int64 `json:"products"`
	Categories    int64 `json:"categories"`
	Orders        int64 `json:"orders"`
	PendingOrders int64 `json:"pending_orders"`
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Product{}).Count(&st.Products).Error; err != nil {
		return nil, apperr.Upstream("count products", err)
	}
	if err := db.Model(&models.Category{}).Count(&st.Categories).Error; err != nil {
		return nil, apperr.Upstream("count categories", err)
	}
	if err := db.Model(&models.Order{}).Count(&st.Orders).Error; err != nil {
		return nil, apperr.Upstream("count orders", err)
	}
	if err := db.Model(&models.Order{}).Where("status = ?", models.OrderStatusPending).Count(&st.PendingOrders).Error; err != nil {
		return nil, apperr.Upstream("count pending orders", err)
	}
	return &st, nil
}

func validateProduct(p *models.Product) error {
	if p.Name == "" {
		return apperr.Validation("name", "Nom et prix sont requis")
	}
	if p.Price.IsNegative() {
		return apperr.Validation("price", "Le prix ne peut pas être négatif")
	}
	if p.Price.IsZero() {
		return apperr.Validation("price", "Nom et prix sont requis")
	}
	return nil
}

func lookupErr(entity, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity, id)
	}
	return apperr.Upstream("select "+entity, err)
}
