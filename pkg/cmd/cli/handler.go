package cli

import "github.com/ignacioelizeche/controlid/config"

type Handler struct {
	Migration *MigrateHandler
	Recovery  *RecoverHandler
	Devices   *DevicesHandler
	Watch     *WatchHandler
}

func NewHandler(c *config.Config) *Handler {
	return &Handler{
		Migration: newMigrateHandler(c),
		Recovery:  newRecoverHandler(c),
		Devices:   newDevicesHandler(c),
		Watch:     newWatchHandler(c),
	}
}
