package notification

import "sort"

// Notification categories accepted by the relay.
const (
	CategoryLogChange           = "log-change"
	CategoryUSBAudit            = "usb-audit"
	CategoryTemplateEnrollment  = "template-enrollment"
	CategoryImageEnrollment     = "image-enrollment"
	CategoryCardEnrollment      = "card-enrollment"
	CategoryPINEnrollment       = "pin-enrollment"
	CategoryPasswordEnrollment  = "password-enrollment"
	CategoryTurnstileEvent      = "turnstile-event"
	CategoryOperationModeChange = "operation-mode-change"
	CategoryLivenessPing        = "liveness-ping"
	CategoryDoorState           = "door-state"
	CategorySecurityBoxState    = "security-box-state"
	CategoryAccessPhoto         = "access-photo"
)

// Categories lists every known category.
var Categories = []string{
	CategoryLogChange,
	CategoryUSBAudit,
	CategoryTemplateEnrollment,
	CategoryImageEnrollment,
	CategoryCardEnrollment,
	CategoryPINEnrollment,
	CategoryPasswordEnrollment,
	CategoryTurnstileEvent,
	CategoryOperationModeChange,
	CategoryLivenessPing,
	CategoryDoorState,
	CategorySecurityBoxState,
	CategoryAccessPhoto,
}

// aliases maps the monitor paths used by device firmware to categories.
var aliases = map[string]string{
	"dao":             CategoryLogChange,
	"usb_drive":       CategoryUSBAudit,
	"template":        CategoryTemplateEnrollment,
	"face":            CategoryImageEnrollment,
	"card":            CategoryCardEnrollment,
	"pin":             CategoryPINEnrollment,
	"password":        CategoryPasswordEnrollment,
	"catra_event":     CategoryTurnstileEvent,
	"operation_mode":  CategoryOperationModeChange,
	"device_is_alive": CategoryLivenessPing,
	"door":            CategoryDoorState,
	"secbox":          CategorySecurityBoxState,
	"access_photo":    CategoryAccessPhoto,
}

// Normalize resolves a category name or firmware alias. ok is false for
// unknown names.
func Normalize(name string) (category string, ok bool) {
	if c, ok := aliases[name]; ok {
		return c, true
	}
	for _, c := range Categories {
		if c == name {
			return c, true
		}
	}
	return "", false
}

// Aliases returns the firmware monitor paths in a stable order.
func Aliases() []string {
	names := make([]string, 0, len(aliases))
	for a := range aliases {
		names = append(names, a)
	}
	sort.Strings(names)
	return names
}
