package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/judyrop/epicerie-backend/checkout"
	"github.com/judyrop/epicerie-backend/models"
)

// SMSNotifier texts the customer through an Africa's Talking style messaging API.
type SMSNotifier struct {
	endpoint string
	username string
	apiKey   string
	client   *http.Client
}

func NewSMSNotifier(endpoint, username, apiKey string) *SMSNotifier {
	return &SMSNotifier{
		endpoint: endpoint,
		username: username,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *SMSNotifier) OrderPlaced(ctx context.Context, order *models.Order) error {
	if strings.TrimSpace(order.CustomerPhone) == "" {
		return nil
	}
	msg := fmt.Sprintf("Bonjour %s, votre commande %s est enregistrée.", order.CustomerName, order.OrderNumber)
	if order.PickupDate != "" {
		msg += " Retrait le " + order.PickupDate + "."
	}

	data := url.Values{}
	data.Set("username", n.username)
	data.Set("to", order.CustomerPhone)
	data.Set("message", msg)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("apiKey", n.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send sms: status %d: %s", resp.StatusCode, body)
	}
	return nil
}

// Multi notifies every target and joins their errors.
type Multi []checkout.Notifier

func (m Multi) OrderPlaced(ctx context.Context, order *models.Order) error {
	var errs []error
	for _, n := range m {
		if err := n.OrderPlaced(ctx, order); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
