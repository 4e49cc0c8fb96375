package logsync

import (
	"fmt"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
)

const isoLayout = "2006-01-02T15:04:05"

// Payload is the document forwarded for a batch of access logs.
type Payload struct {
	DeviceID string              `json:"device_id,omitempty"`
	Objects  []map[string]string `json:"objects"`
}

// NewPayload converts logs into the forwarding format: the time as an ISO
// local timestamp, numbers as strings with five decimals and strings as is.
func NewPayload(deviceID string, logs []model.AccessLog, loc *time.Location) Payload {
	if loc == nil {
		loc = time.Local
	}

	p := Payload{
		DeviceID: deviceID,
		Objects:  make([]map[string]string, 0, len(logs)),
	}
	for _, l := range logs {
		p.Objects = append(p.Objects, map[string]string{
			"id":                     number(l.ID),
			"time":                   time.Unix(l.Time, 0).In(loc).Format(isoLayout),
			"event":                  number(l.Event),
			"device_id":              number(l.DeviceID),
			"identifier_id":          number(l.IdentifierID),
			"user_id":                number(l.UserID),
			"portal_id":              number(l.PortalID),
			"identification_rule_id": number(l.IdentificationRuleID),
			"card_value":             number(l.CardValue),
			"qrcode_value":           l.QRCodeValue,
			"pin_value":              l.PinValue,
			"confidence":             number(l.Confidence),
			"mask":                   number(l.Mask),
			"log_type_id":            number(l.LogTypeID),
			"component_id":           number(l.ComponentID),
		})
	}

	return p
}

func number(v int64) string {
	return fmt.Sprintf("%.5f", float64(v))
}
