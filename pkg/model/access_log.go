package model

// AccessLog is an access control record as reported by a device. Time is
// seconds since the unix epoch in device local time.
type AccessLog struct {
	ID                   int64  `json:"id"`
	Time                 int64  `json:"time"`
	Event                int64  `json:"event"`
	DeviceID             int64  `json:"device_id"`
	IdentifierID         int64  `json:"identifier_id"`
	UserID               int64  `json:"user_id"`
	PortalID             int64  `json:"portal_id"`
	IdentificationRuleID int64  `json:"identification_rule_id"`
	CardValue            int64  `json:"card_value"`
	QRCodeValue          string `json:"qrcode_value"`
	PinValue             string `json:"pin_value"`
	Confidence           int64  `json:"confidence"`
	Mask                 int64  `json:"mask"`
	LogTypeID            int64  `json:"log_type_id"`
	ComponentID          int64  `json:"component_id"`

	// Source is the registry id of the device the log was fetched from.
	Source string `json:"-"`
}
