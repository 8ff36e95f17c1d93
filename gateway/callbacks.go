package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// CallbackAck is the only body the gateway accepts as a successful delivery.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var Ack = CallbackAck{ResultCode: 0, ResultDesc: "Success"}

// C2BCallback is posted to the confirmation and validation URLs.
type C2BCallback struct {
	TransactionType   string      `json:"TransactionType"`
	TransID           string      `json:"TransID"`
	TransTime         string      `json:"TransTime"`
	TransAmount       json.Number `json:"TransAmount"`
	BusinessShortCode string      `json:"BusinessShortCode"`
	BillRefNumber     string      `json:"BillRefNumber"`
	InvoiceNumber     string      `json:"InvoiceNumber"`
	OrgAccountBalance string      `json:"OrgAccountBalance"`
	ThirdPartyTransID string      `json:"ThirdPartyTransID"`
	MSISDN            string      `json:"MSISDN"`
	FirstName         string      `json:"FirstName"`
}

// ResultEnvelope wraps B2C result, B2C timeout and balance callbacks.
type ResultEnvelope struct {
	Result Result `json:"Result"`
}

type Result struct {
	ResultType               int               `json:"ResultType"`
	ResultCode               Code              `json:"ResultCode"`
	ResultDesc               string            `json:"ResultDesc"`
	OriginatorConversationID string            `json:"OriginatorConversationID"`
	ConversationID           string            `json:"ConversationID"`
	TransactionID            string            `json:"TransactionID"`
	ResultParameters         *ResultParameters `json:"ResultParameters,omitempty"`
}

type ResultParameters struct {
	ResultParameter []ResultParameter `json:"ResultParameter"`
}

type ResultParameter struct {
	Key   string      `json:"Key"`
	Value interface{} `json:"Value"`
}

// Succeeded is true only for an explicit zero result code.
func (r Result) Succeeded() bool {
	return r.ResultCode.Set && r.ResultCode.Value == 0
}

// Param returns the named result parameter, if present.
func (r Result) Param(key string) (interface{}, bool) {
	if r.ResultParameters == nil {
		return nil, false
	}
	for _, p := range r.ResultParameters.ResultParameter {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Code is a result code sent either as a number or as a quoted string. Set
// is false when the field was absent, null or empty.
type Code struct {
	Value int
	Set   bool
}

func CodeOf(n int) Code {
	return Code{Value: n, Set: true}
}

func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(bytes.Trim(b, `"`))
	if len(b) == 0 || string(b) == "null" {
		*c = Code{}
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return err
	}
	*c = CodeOf(n)
	return nil
}

func (c Code) MarshalJSON() ([]byte, error) {
	if !c.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(c.Value)), nil
}

// String returns the decimal code, or "" when no code was sent.
func (c Code) String() string {
	if !c.Set {
		return ""
	}
	return strconv.Itoa(c.Value)
}
