package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

type registerURLRequest struct {
	ShortCode       string `json:"ShortCode"`
	ResponseType    string `json:"ResponseType"`
	ConfirmationURL string `json:"ConfirmationURL"`
	ValidationURL   string `json:"ValidationURL"`
}

// RegisterURLs tells the gateway where to deliver C2B confirmation and
// validation callbacks.
func (c *Client) RegisterURLs(ctx context.Context) (*Response, error) {
	return c.post(ctx, "/mpesa/c2b/v1/registerurl", registerURLRequest{
		ShortCode:       c.cfg.ShortCode,
		ResponseType:    "Completed",
		ConfirmationURL: c.cfg.callbackURL(PathC2BConfirmation),
		ValidationURL:   c.cfg.callbackURL(PathC2BValidation),
	})
}

type simulateC2BRequest struct {
	ShortCode     string `json:"ShortCode"`
	CommandID     string `json:"CommandID"`
	Amount        int64  `json:"Amount"`
	Msisdn        string `json:"Msisdn"`
	BillRefNumber string `json:"BillRefNumber"`
}

// SimulateC2B asks the sandbox to push a customer payment of amount from
// phone, tagged with reference. The confirmation arrives asynchronously.
func (c *Client) SimulateC2B(ctx context.Context, phone string, amount decimal.Decimal, reference string) (*Response, error) {
	return c.post(ctx, "/mpesa/c2b/v1/simulate", simulateC2BRequest{
		ShortCode:     c.cfg.ShortCode,
		CommandID:     "CustomerPayBillOnline",
		Amount:        WholeAmount(amount),
		Msisdn:        phone,
		BillRefNumber: reference,
	})
}

// WholeAmount rounds to the integer currency unit the gateway accepts.
func WholeAmount(amount decimal.Decimal) int64 {
	return amount.Round(0).IntPart()
}
