package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/midtrans/midtrans-go"
)

// ClientConfig is what a browser needs to tokenise a card before booking.
type ClientConfig struct {
	CardEnabled bool   `json:"card_enabled"`
	ClientKey   string `json:"client_key,omitempty"`
	Environment string `json:"environment,omitempty" example:"sandbox"`
	Currency    string `json:"currency" example:"IDR"`
}

type Handler struct {
	config ClientConfig
}

func NewHandler(gateway Gateway, clientKey, currency string) *Handler {
	cfg := ClientConfig{Currency: currency}
	if gateway != nil && gateway.Configured() && gateway.SupportsCurrency(currency) && clientKey != "" {
		cfg.CardEnabled = true
		cfg.ClientKey = clientKey
		cfg.Environment = "production"
		if EnvironmentFor(clientKey) == midtrans.Sandbox {
			cfg.Environment = "sandbox"
		}
	}
	return &Handler{config: cfg}
}

func (h *Handler) Enabled() bool {
	return h.config.CardEnabled
}

// @Summary      Card payment settings
// @Description  Public client key and environment for card tokenisation. Card payments are off when the gateway cannot settle the configured currency.
// @Tags         payments
// @Produce      json
// @Success      200 {object} payment.ClientConfig
// @Router       /payments/config [get]
func (h *Handler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, h.config)
}
