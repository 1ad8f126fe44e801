package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/judyrop/epicerie-backend/apperr"
	"github.com/judyrop/epicerie-backend/cart"
	"github.com/judyrop/epicerie-backend/catalog"
	"github.com/judyrop/epicerie-backend/images"
)

const CartCookie = "cart_id"

// Carts serves the session cart held in the cart_id cookie.
type Carts struct {
	Service  *cart.Service
	Store    *catalog.Store
	Resolver images.Resolver
	Secure   bool
}

// open loads the caller's cart, starting a new session when the cookie is
// missing or malformed. The cookie is refreshed on every call.
func (h *Carts) open(c *gin.Context) (*cart.Cart, error) {
	id, err := c.Cookie(CartCookie)
	if _, perr := uuid.Parse(id); err != nil || perr != nil {
		id = cart.NewID()
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CartCookie, id, int(cart.DefaultTTL.Seconds()), "/", "", h.Secure, true)
	return h.Service.Open(c.Request.Context(), id)
}

func (h *Carts) GetCart(c *gin.Context) {
	session, err := h.open(c)
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la récupération du panier")
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (h *Carts) AddItem(c *gin.Context) {
	var req struct {
		ProductID string `json:"product_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	product, err := h.Store.GetProduct(ctx, req.ProductID)
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de l'ajout au panier")
		return
	}
	if !product.InStock {
		apperr.Respond(c, apperr.Validation("product_id", "Produit en rupture de stock"), "")
		return
	}

	session, err := h.open(c)
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de l'ajout au panier")
		return
	}
	err = session.AddItem(ctx, cart.Product{
		ID:          product.ID,
		Name:        product.Name,
		Price:       product.Price,
		Description: product.Description,
		Category:    product.CategoryName(),
		Image:       h.Resolver.Resolve(product.ImagePath, product.ImageURL),
	})
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de l'ajout au panier")
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (h *Carts) UpdateQuantity(c *gin.Context) {
	var req struct {
		Quantity *int `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := h.open(c)
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la mise à jour du panier")
		return
	}
	if err := session.UpdateQuantity(c.Request.Context(), c.Param("productId"), *req.Quantity); err != nil {
		apperr.Respond(c, err, "Erreur lors de la mise à jour du panier")
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (h *Carts) RemoveItem(c *gin.Context) {
	session, err := h.open(c)
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la mise à jour du panier")
		return
	}
	if err := session.RemoveItem(c.Request.Context(), c.Param("productId")); err != nil {
		apperr.Respond(c, err, "Erreur lors de la mise à jour du panier")
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (h *Carts) Clear(c *gin.Context) {
	session, err := h.open(c)
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la mise à jour du panier")
		return
	}
	if err := session.Clear(c.Request.Context()); err != nil {
		apperr.Respond(c, err, "Erreur lors de la mise à jour du panier")
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}
