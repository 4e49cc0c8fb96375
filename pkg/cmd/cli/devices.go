package cli

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/ignacioelizeche/controlid/config"
	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/storage"
	"github.com/ignacioelizeche/controlid/pkg/storage/sqlstore"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type DevicesHandler struct {
	c *config.Config
}

func newDevicesHandler(c *config.Config) *DevicesHandler {
	return &DevicesHandler{c: c}
}

type deviceEntry struct {
	ID          string                 `yaml:"id"`
	Name        string                 `yaml:"name"`
	Address     string                 `yaml:"address"`
	Protocol    string                 `yaml:"protocol"`
	Login       string                 `yaml:"login"`
	Password    string                 `yaml:"password"`
	Defaults    map[string]interface{} `yaml:"defaults"`
	SyncEnabled *bool                  `yaml:"sync_enabled"`
}

type deviceFile struct {
	Devices []deviceEntry `yaml:"devices"`
}

// ParseDeviceFile reads a device list. The file is either a list of devices
// or a mapping with a devices key. JSON files are accepted as well.
func ParseDeviceFile(data []byte) ([]model.Device, error) {
	var entries []deviceEntry

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, errors.Wrap(err, "failed to parse device file")
	}
	if len(node.Content) == 0 {
		return nil, errors.New("device file is empty")
	}

	if node.Content[0].Kind == yaml.SequenceNode {
		if err := node.Decode(&entries); err != nil {
			return nil, errors.Wrap(err, "failed to decode devices")
		}
	} else {
		var f deviceFile
		if err := node.Decode(&f); err != nil {
			return nil, errors.Wrap(err, "failed to decode devices")
		}
		entries = f.Devices
	}

	seen := make(map[string]bool, len(entries))
	devices := make([]model.Device, 0, len(entries))
	for i, e := range entries {
		if e.ID == "" || e.Address == "" {
			return nil, errors.Errorf("device #%d needs an id and an address", i+1)
		}
		if seen[e.ID] {
			return nil, errors.Errorf("device %s is listed twice", e.ID)
		}
		seen[e.ID] = true

		devices = append(devices, model.Device{
			ID:           e.ID,
			Name:         e.Name,
			Address:      e.Address,
			Protocol:     e.Protocol,
			Login:        e.Login,
			Password:     e.Password,
			Defaults:     e.Defaults,
			SyncDisabled: e.SyncEnabled != nil && !*e.SyncEnabled,
		})
	}

	return devices, nil
}

// ImportDevices creates the devices missing in the store and returns how
// many were created. Registered devices are left untouched.
func ImportDevices(ctx context.Context, store storage.DeviceStore, devices []model.Device) (int, error) {
	created := 0
	for i := range devices {
		err := store.Create(ctx, &devices[i])
		if errors.Cause(err) == storage.ErrAlreadyExists {
			log.WithField("device_id", devices[i].ID).Warn("Device already registered, skipping")
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (h *DevicesHandler) Import(cmd *cobra.Command, args []string) {
	if len(args) < 1 || args[0] == "" {
		fmt.Println(cmd.UsageString())
		os.Exit(2)
	}

	useConsoleOutput(false)

	data, err := ioutil.ReadFile(args[0])
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}

	devices, err := ParseDeviceFile(data)
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}

	store, db, err := sqlstore.Connect(h.c.DatabaseURL)
	if err != nil {
		log.Errorf("An error occurred while connecting to SQL: %s", err)
		os.Exit(1)
	}
	defer db.Close()

	n, err := ImportDevices(context.Background(), store.Devices(), devices)
	if err != nil {
		log.Errorf("Import failed after %d devices: %s", n, err)
		os.Exit(1)
	}
	log.Infof("Imported %d of %d devices.", n, len(devices))
}

func (h *DevicesHandler) List(cmd *cobra.Command, args []string) {
	useConsoleOutput(false)

	store, db, err := sqlstore.Connect(h.c.DatabaseURL)
	if err != nil {
		log.Errorf("An error occurred while connecting to SQL: %s", err)
		os.Exit(1)
	}
	defer db.Close()

	devices, err := store.Devices().List(context.Background())
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
	for _, d := range devices {
		log.WithFields(log.Fields{
			"name":         d.Name,
			"address":      d.BaseURL(),
			"login":        d.Login,
			"sync_enabled": d.SyncEnabled(),
		}).Info(d.ID)
	}
}
