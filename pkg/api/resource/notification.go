package resource

import (
	"github.com/ignacioelizeche/controlid/pkg/notification"
)

type NotificationListResource struct {
	Members []notification.Entry `json:"members"`
}

func NewNotificationList(entries []notification.Entry) *NotificationListResource {
	if entries == nil {
		entries = make([]notification.Entry, 0)
	}
	return &NotificationListResource{Members: entries}
}

type ReceivedResource struct {
	Received bool `json:"received"`
}
