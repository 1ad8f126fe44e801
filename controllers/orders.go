package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/judyrop/epicerie-backend/apperr"
	"github.com/judyrop/epicerie-backend/cart"
	"github.com/judyrop/epicerie-backend/catalog"
	"github.com/judyrop/epicerie-backend/checkout"
	"github.com/judyrop/epicerie-backend/middlewares"
	"github.com/judyrop/epicerie-backend/models"
)

type Orders struct {
	Pipeline *checkout.Pipeline
	Store    *catalog.Store
	Carts    *Carts
}

type checkoutDetails struct {
	Customer   checkout.Customer `json:"customer"`
	Notes      string            `json:"notes"`
	PickupDate string            `json:"pickup_date"`
	PickupSlot string            `json:"pickup_slot"`
}

type orderItemRequest struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// CreateOrder places an order from the item list posted by the client.
func (h *Orders) CreateOrder(c *gin.Context) {
	var req struct {
		checkoutDetails
		Items []orderItemRequest `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données de commande incomplètes"})
		return
	}

	items := make([]cart.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, cart.Item{
			Product:  cart.Product{ID: it.ID, Name: it.Name, Price: it.Price},
			Quantity: it.Quantity,
		})
	}
	h.submit(c, req.checkoutDetails, items, nil)
}

// Checkout places an order from the session cart and empties it.
func (h *Orders) Checkout(c *gin.Context) {
	var req checkoutDetails
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données de commande incomplètes"})
		return
	}
	session, err := h.Carts.open(c)
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la récupération du panier")
		return
	}
	h.submit(c, req, session.Items(), session)
}

func (h *Orders) submit(c *gin.Context, d checkoutDetails, items []cart.Item, session checkout.Clearer) {
	order, err := h.Pipeline.Submit(c.Request.Context(), checkout.Request{
		Items:      items,
		Customer:   d.Customer,
		PickupDate: d.PickupDate,
		PickupSlot: d.PickupSlot,
		Notes:      d.Notes,
	}, session)
	middlewares.RecordOperation("order", err == nil)
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la création de la commande")
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Orders) ListOrders(c *gin.Context) {
	orders, err := h.Store.ListOrders(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la récupération des commandes")
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Orders) GetOrder(c *gin.Context) {
	order, err := h.Store.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la récupération de la commande")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Orders) UpdateStatus(c *gin.Context) {
	var req struct {
		Status models.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if err := h.Store.UpdateOrderStatus(ctx, c.Param("id"), req.Status); err != nil {
		apperr.Respond(c, err, "Erreur lors de la mise à jour de la commande")
		return
	}
	order, err := h.Store.GetOrder(ctx, c.Param("id"))
	if err != nil {
		apperr.Respond(c, err, "Erreur lors de la récupération de la commande")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Orders) DeleteOrder(c *gin.Context) {
	if err := h.Store.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		apperr.Respond(c, err, "Erreur lors de la suppression de la commande")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
