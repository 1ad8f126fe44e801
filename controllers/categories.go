// Package controllers holds the gin handlers of the storefront and admin API.
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/judyrop/epicerie-backend/apperr"
	"github.com/judyrop/epicerie-backend/catalog"
	"github.com/judyrop/epicerie-backend/models"
)

type categoryRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

func ListCategories(store *catalog.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := store.ListCategories(c.Request.Context())
		if err != nil {
			apperr.Respond(c, err, "Erreur lors de la récupération des catégories")
			return
		}
		c.JSON(http.StatusOK, categories)
	}
}

func GetCategory(store *catalog.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		category, err := store.GetCategory(c.Request.Context(), c.Param("id"))
		if err != nil {
			apperr.Respond(c, err, "Erreur lors de la récupération de la catégorie")
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

func CreateCategory(store *catalog.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req categoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		category := models.Category{Name: req.Name, Icon: req.Icon}
		if err := store.CreateCategory(c.Request.Context(), &category); err != nil {
			apperr.Respond(c, err, "Erreur lors de la création de la catégorie")
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

func UpdateCategory(store *catalog.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req categoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		category, err := store.UpdateCategory(c.Request.Context(), c.Param("id"), req.Name, req.Icon)
		if err != nil {
			apperr.Respond(c, err, "Erreur lors de la mise à jour de la catégorie")
			return
		}
		c.JSON(http.StatusOK, category)
	}
}

func DeleteCategory(store *catalog.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
			apperr.Respond(c, err, "Erreur lors de la suppression de la catégorie")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
