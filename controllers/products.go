package controllers

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/judyrop/epicerie-backend/apperr"
	"github.com/judyrop/epicerie-backend/catalog"
	"github.com/judyrop/epicerie-backend/images"
	"github.com/judyrop/epicerie-backend/middlewares"
	"github.com/judyrop/epicerie-backend/models"
	"github.com/judyrop/epicerie-backend/storage"
)

// Blobs is the Blob Store as the handlers use it. *storage.Client implements it.
type Blobs interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	Download(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Remove(ctx context.Context, paths ...string) error
	EnsureBucket(ctx context.Context) (bool, error)
	PublicURL(path string) string
}

// Catalog groups what the product handlers need.
type Catalog struct {
	Store    *catalog.Store
	Blobs    Blobs
	Resolver images.Resolver
	Now      func() time.Time
}

func (h *Catalog) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *Catalog) present(p *models.Product) {
	p.DisplayImage = h.Resolver.Resolve(p.ImagePath, p.ImageURL)
}

func (h *Catalog) ListProducts(c *gin.Context) {
	filter := catalog.ProductFilter{
		CategorySlug: c.Query("category"),
		InStockOnly:  c.Query("in_stock") == "true",
	}
	products, err := h.Store.ListProducts(c.Request.Context(), filter)
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la récupération des produits")
		return
	}
	for i := range products {
		h.present(&products[i])
	}
	c.JSON(http.StatusOK, products)
}

func (h *Catalog) GetProduct(c *gin.Context) {
	product, err := h.Store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la récupération du produit")
		return
	}
	h.present(product)
	c.JSON(http.StatusOK, product)
}

func (h *Catalog) GetProductBySlug(c *gin.Context) {
	product, err := h.Store.GetProductBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la récupération du produit")
		return
	}
	h.present(product)
	c.JSON(http.StatusOK, product)
}

// CreateProduct inserts the product first, then uploads its image. A failed
// upload still returns the product, with a warning.
func (h *Catalog) CreateProduct(c *gin.Context) {
	ctx := c.Request.Context()
	var product models.Product
	if err := bindProductForm(c, &product); err != nil {
		apperr.Respond(c, err, "Erreur lors de la création du produit")
		return
	}
	if err := h.Store.CreateProduct(ctx, &product); err != nil {
		apperr.Respond(c, err, "Erreur lors de la création du produit")
		return
	}

	if file, err := c.FormFile("image"); err == nil && file.Size > 0 {
		url, path, err := h.uploadImage(ctx, product.ID, file)
		if err != nil {
			log.Printf("image upload for product %s failed: %v", product.ID, err)
			product.Warning = "Le produit a été créé mais l'image n'a pas pu être téléchargée"
		} else if err := h.Store.SetProductImage(ctx, product.ID, url, path); err != nil {
			log.Printf("failed to attach image to product %s: %v", product.ID, err)
			product.Warning = "Le produit a été créé mais l'image n'a pas pu être associée"
		} else {
			product.ImageURL, product.ImagePath = url, path
		}
	}

	warning := product.Warning
	if saved, err := h.Store.GetProduct(ctx, product.ID); err == nil {
		product = *saved
		product.Warning = warning
	}
	h.present(&product)
	c.JSON(http.StatusCreated, product)
}

// UpdateProduct replaces the product fields. A new image replaces the old
// blob once it is uploaded and saved; if its upload fails the previous image
// is kept.
func (h *Catalog) UpdateProduct(c *gin.Context) {
	ctx := c.Request.Context()
	product, err := h.Store.GetProduct(ctx, c.Param("id"))
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la mise à jour du produit")
		return
	}
	if err := bindProductForm(c, product); err != nil {
		apperr.Respond(c, err, "Erreur lors de la mise à jour du produit")
		return
	}

	var replaced, uploaded string
	if file, err := c.FormFile("image"); err == nil && file.Size > 0 {
		url, path, err := h.uploadImage(ctx, product.ID, file)
		if err != nil {
			log.Printf("image upload for product %s failed: %v", product.ID, err)
		} else {
			replaced, uploaded = product.ImagePath, path
			product.ImageURL, product.ImagePath = url, path
		}
	}

	product.Category = nil
	if err := h.Store.SaveProduct(ctx, product); err != nil {
		if uploaded != "" {
			h.removeBlob(ctx, uploaded)
		}
		apperr.Respond(c, err, "Erreur lors de la mise à jour du produit")
		return
	}
	if replaced != "" && replaced != uploaded {
		h.removeBlob(ctx, replaced)
	}
	if saved, err := h.Store.GetProduct(ctx, product.ID); err == nil {
		product = saved
	}
	h.present(product)
	c.JSON(http.StatusOK, product)
}

func (h *Catalog) DeleteProduct(c *gin.Context) {
	ctx := c.Request.Context()
	product, err := h.Store.GetProduct(ctx, c.Param("id"))
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la suppression du produit")
		return
	}
	if product.ImagePath != "" {
		h.removeBlob(ctx, product.ImagePath)
	}
	if err := h.Store.DeleteProduct(ctx, product.ID); err != nil {
		apperr.Respond(c, err, "Erreur lors de la suppression du produit")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Catalog) removeBlob(ctx context.Context, path string) {
	if err := h.Blobs.Remove(ctx, path); err != nil {
		log.Printf("failed to remove image %s: %v", path, err)
	}
}

// uploadImage stores file under <productID>/<productID>-<ms>.<ext> and returns
// its cache-busted public URL and object path.
func (h *Catalog) uploadImage(ctx context.Context, productID string, file *multipart.FileHeader) (url, path string, err error) {
	defer func() { middlewares.RecordOperation("upload", err == nil) }()

	if file.Size > storage.MaxUploadSize {
		return "", "", apperr.Validation("image", "L'image dépasse 5 Mo")
	}
	f, err := file.Open()
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, storage.MaxUploadSize+1))
	if err != nil {
		return "", "", err
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", "", apperr.Validation("image", "Le fichier n'est pas une image")
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	if ext == "" {
		ext = strings.TrimPrefix(mt.Extension(), ".")
	}

	ms := h.now().UnixMilli()
	path = fmt.Sprintf("%s/%s-%d.%s", productID, productID, ms, ext)
	if err := h.Blobs.Upload(ctx, path, data, mt.String()); err != nil {
		return "", "", err
	}
	return fmt.Sprintf("%s?t=%d", h.Blobs.PublicURL(path), ms), path, nil
}

// bindProductForm copies the multipart product form onto p.
func bindProductForm(c *gin.Context, p *models.Product) error {
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		return apperr.Validation("name", "Nom et prix sont requis")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("price")))
	if err != nil {
		return apperr.Validation("price", "Nom et prix sont requis")
	}

	p.Name = name
	p.Description = c.PostForm("description")
	p.Price = price.Round(2)
	p.InStock = c.PostForm("in_stock") == "true"
	p.CategoryID = nil
	if id := c.PostForm("category_id"); id != "" && id != "none" {
		p.CategoryID = &id
	}
	return nil
}
