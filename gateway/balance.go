package gateway

import "context"

type balanceRequest struct {
	Initiator          string `json:"Initiator"`
	SecurityCredential string `json:"SecurityCredential"`
	CommandID          string `json:"CommandID"`
	PartyA             string `json:"PartyA"`
	IdentifierType     string `json:"IdentifierType"`
	Remarks            string `json:"Remarks"`
	QueueTimeOutURL    string `json:"QueueTimeOutURL"`
	ResultURL          string `json:"ResultURL"`
}

// AccountBalance queues a balance inquiry for the payout shortcode.
func (c *Client) AccountBalance(ctx context.Context) (*Response, error) {
	return c.post(ctx, "/mpesa/accountbalance/v1/query", balanceRequest{
		Initiator:          c.cfg.InitiatorName,
		SecurityCredential: c.cfg.SecurityCredential,
		CommandID:          "AccountBalance",
		PartyA:             c.cfg.B2CShortCode,
		IdentifierType:     "4",
		Remarks:            "Balance inquiry",
		QueueTimeOutURL:    c.cfg.callbackURL(PathB2CTimeout),
		ResultURL:          c.cfg.callbackURL(PathBalanceResult),
	})
}
