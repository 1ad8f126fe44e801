package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"

	"github.com/judyrop/epicerie-backend/apperr"
	"github.com/judyrop/epicerie-backend/catalog"
)

var exportHeaders = []string{
	"ID", "Nom", "Slug", "Description", "Prix", "Catégorie", "En stock", "Image", "Créé le", "Modifié le",
}

// ExportProducts streams the catalog as an Excel workbook.
func ExportProducts(store *catalog.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := store.ListProducts(c.Request.Context(), catalog.ProductFilter{})
		if err != nil {
			apperr.Respond(c, err, "Erreur lors de l'export des produits")
			return
		}

		file := xlsx.NewFile()
		sheet, err := file.AddSheet("Produits")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lors de l'export des produits"})
			return
		}

		header := sheet.AddRow()
		for _, h := range exportHeaders {
			header.AddCell().SetString(h)
		}
		for _, p := range products {
			row := sheet.AddRow()
			row.AddCell().SetString(p.ID)
			row.AddCell().SetString(p.Name)
			row.AddCell().SetString(p.Slug)
			row.AddCell().SetString(p.Description)
			row.AddCell().SetString(p.Price.StringFixed(2))
			row.AddCell().SetString(p.CategoryName())
			row.AddCell().SetBool(p.InStock)
			row.AddCell().SetString(p.ImagePath)
			row.AddCell().SetString(p.CreatedAt.Format("2006-01-02 15:04:05"))
			row.AddCell().SetString(p.UpdatedAt.Format("2006-01-02 15:04:05"))
		}

		c.Header("Content-Disposition", "attachment; filename=produits.xlsx")
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := file.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lors de l'export des produits"})
			return
		}
	}
}
