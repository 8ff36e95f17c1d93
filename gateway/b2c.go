package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// PayoutRequest is a business-to-customer payment to a worker's wallet.
type PayoutRequest struct {
	Phone    string
	Amount   decimal.Decimal
	Remarks  string
	Occasion string
	// OriginatorConversationID is chosen by the caller and echoed on the
	// result and timeout callbacks.
	OriginatorConversationID string
}

type b2cRequest struct {
	OriginatorConversationID string `json:"OriginatorConversationID,omitempty"`
	InitiatorName            string `json:"InitiatorName"`
	SecurityCredential       string `json:"SecurityCredential"`
	CommandID                string `json:"CommandID"`
	Amount                   int64  `json:"Amount"`
	PartyA                   string `json:"PartyA"`
	PartyB                   string `json:"PartyB"`
	Remarks                  string `json:"Remarks"`
	QueueTimeOutURL          string `json:"QueueTimeOutURL"`
	ResultURL                string `json:"ResultURL"`
	Occasion                 string `json:"Occassion"`
}

// B2CPayment submits a payout. The returned ConversationID is what the
// result or timeout callback will carry.
func (c *Client) B2CPayment(ctx context.Context, p PayoutRequest) (*Response, error) {
	remarks := p.Remarks
	if remarks == "" {
		remarks = "Task payment"
	}
	return c.post(ctx, "/mpesa/b2c/v1/paymentrequest", b2cRequest{
		OriginatorConversationID: p.OriginatorConversationID,
		InitiatorName:            c.cfg.InitiatorName,
		SecurityCredential:       c.cfg.SecurityCredential,
		CommandID:                "BusinessPayment",
		Amount:                   WholeAmount(p.Amount),
		PartyA:                   c.cfg.B2CShortCode,
		PartyB:                   p.Phone,
		Remarks:                  remarks,
		QueueTimeOutURL:          c.cfg.callbackURL(PathB2CTimeout),
		ResultURL:                c.cfg.callbackURL(PathB2CResult),
		Occasion:                 p.Occasion,
	})
}
