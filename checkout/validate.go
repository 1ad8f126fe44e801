package checkout

import (
	"strings"
	"time"

	"github.com/judyrop/epicerie-backend/apperr"
)

const dateLayout = "2006-01-02"

// PickupSlots are the collection windows offered on open days.
var PickupSlots = []string{
	"08:00 - 10:00",
	"10:00 - 12:00",
	"14:00 - 16:00",
	"16:00 - 18:00",
}

// ClosedDays are the weekdays the shop is closed.
var ClosedDays = []time.Weekday{time.Sunday, time.Monday}

// Validate checks req against the time now. It does not touch any store.
func (p *Pipeline) Validate(req Request, now time.Time) error {
	if len(req.Items) == 0 {
		return apperr.Validation("items", "Le panier est vide")
	}
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return apperr.Validation("items", "Quantité invalide")
		}
		if it.Price.IsNegative() {
			return apperr.Validation("items", "Prix invalide")
		}
	}

	name := strings.TrimSpace(req.Customer.Name)
	email := strings.TrimSpace(req.Customer.Email)
	if name == "" || email == "" {
		return apperr.Validation("customer", "Le nom et l'email sont requis")
	}
	if !strings.Contains(email, "@") {
		return apperr.Validation("customer.email", "Adresse email invalide")
	}

	if req.PickupDate != "" {
		if err := p.validatePickupDate(req.PickupDate, now); err != nil {
			return err
		}
	}
	if req.PickupSlot != "" && !validSlot(req.PickupSlot) {
		return apperr.Validation("pickup_slot", "Créneau de retrait invalide")
	}
	return nil
}

func (p *Pipeline) validatePickupDate(value string, now time.Time) error {
	date, err := time.ParseInLocation(dateLayout, value, p.loc)
	if err != nil {
		return apperr.Validation("pickup_date", "Date de retrait invalide")
	}
	for _, d := range ClosedDays {
		if date.Weekday() == d {
			return apperr.Validation("pickup_date", "La boutique est fermée le dimanche et le lundi")
		}
	}
	local := now.In(p.loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.loc)
	if date.Before(today) {
		return apperr.Validation("pickup_date", "La date de retrait est passée")
	}
	return nil
}

func validSlot(slot string) bool {
	for _, s := range PickupSlots {
		if s == slot {
			return true
		}
	}
	return false
}
