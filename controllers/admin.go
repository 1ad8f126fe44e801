package controllers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/judyrop/epicerie-backend/apperr"
	"github.com/judyrop/epicerie-backend/auth"
	"github.com/judyrop/epicerie-backend/catalog"
	"github.com/judyrop/epicerie-backend/images"
)

// Dashboard returns the counts shown on the admin home page.
func Dashboard(store *catalog.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := store.Stats(c.Request.Context())
		if err != nil {
			apperr.Respond(c, err, "Erreur lors du chargement du tableau de bord")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"admin": auth.CurrentAdmin(c),
			"stats": stats,
		})
	}
}

func Seed(store *catalog.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := store.Seed(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"message":    "Base de données initialisée avec succès",
			"categories": res.Categories,
			"products":   res.Products,
		})
	}
}

func InitStorage(blobs Blobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		created, err := blobs.EnsureBucket(c.Request.Context())
		if err != nil {
			apperr.Respond(c, err, "Erreur lors de l'initialisation du stockage")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "created": created})
	}
}

type migrationDetail struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	OldURL string `json:"oldUrl,omitempty"`
	NewURL string `json:"newUrl,omitempty"`
	Error  string `json:"error,omitempty"`
}

// MigrateImages points every stored product image at the image proxy.
func MigrateImages(store *catalog.Store, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		products, err := store.ProductsWithImagePath(ctx)
		if err != nil {
			apperr.Respond(c, err, "Erreur lors de la migration des images")
			return
		}
		log.Printf("migrating %d product images", len(products))

		success, failed := 0, 0
		details := make([]migrationDetail, 0, len(products))
		for _, p := range products {
			proxyURL := images.ProxyURL(p.ImagePath, now().UnixMilli())
			if err := store.SetProductImage(ctx, p.ID, proxyURL, p.ImagePath); err != nil {
				failed++
				details = append(details, migrationDetail{ID: p.ID, Status: "error", Error: err.Error()})
				continue
			}
			success++
			details = append(details, migrationDetail{ID: p.ID, Status: "success", OldURL: p.ImageURL, NewURL: proxyURL})
		}

		c.JSON(http.StatusOK, gin.H{
			"total":   len(products),
			"success": success,
			"failed":  failed,
			"details": details,
		})
	}
}

// ImageProxy streams a stored image. Any failure redirects to the placeholder.
func ImageProxy(blobs Blobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		objectPath := strings.TrimLeft(c.Param("path"), "/")

		ok, err := blobs.Exists(ctx, objectPath)
		if err != nil || !ok {
			log.Printf("image proxy: %s not found: %v", objectPath, err)
			c.Redirect(http.StatusFound, images.ProxyPlaceholder)
			return
		}
		data, err := blobs.Download(ctx, objectPath)
		if err != nil {
			log.Printf("image proxy: download %s failed: %v", objectPath, err)
			c.Redirect(http.StatusFound, images.ProxyPlaceholder)
			return
		}

		c.Header("Cache-Control", "public, max-age=31536000, immutable")
		c.Data(http.StatusOK, images.ContentTypeFor(objectPath), data)
	}
}

