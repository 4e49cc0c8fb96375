package controlid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const accessLogsObject = "access_logs"

// Client talks to the HTTP/JSON control API of a device. Every call is bound
// by the client timeout in addition to the context deadline.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient returns a device client with the given per-call timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// LogFilter selects access logs. AfterID takes precedence over Since.
// Until is applied on the relay side since devices only filter one bound.
type LogFilter struct {
	AfterID int64
	Since   int64
	Until   int64
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Session string `json:"session"`
}

// Login opens a new session on the device and returns its token.
func (c *Client) Login(ctx context.Context, dev *model.Device) (string, error) {
	body, err := json.Marshal(loginRequest{Login: dev.Login, Password: dev.Password})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode login request")
	}

	status, payload, err := c.post(ctx, dev, "login.fcgi", "", body)
	if err != nil {
		return "", err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return "", NewAuthenticationError(dev.ID, deviceMessage(payload, "credentials rejected"))
	}
	if err := checkStatus(dev.ID, status, payload); err != nil {
		return "", err
	}

	resp := loginResponse{}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", NewProtocolError(dev.ID, "malformed login response", payload)
	}
	if resp.Session == "" {
		return "", NewAuthenticationError(dev.ID, "no session in login response")
	}

	return resp.Session, nil
}

// Logout closes the session on the device.
func (c *Client) Logout(ctx context.Context, dev *model.Device, token string) error {
	status, payload, err := c.post(ctx, dev, "logout.fcgi", token, nil)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		// Already gone
		return nil
	}

	return checkStatus(dev.ID, status, payload)
}

// LoadAccessLogs fetches access logs matching the filter, ordered by id.
func (c *Client) LoadAccessLogs(ctx context.Context, dev *model.Device, token string, filter LogFilter) ([]model.AccessLog, error) {
	where := map[string]interface{}{}
	switch {
	case filter.AfterID > 0:
		where["id"] = map[string]int64{">": filter.AfterID}
	case filter.Since > 0:
		where["time"] = map[string]int64{">=": filter.Since}
	}

	req := map[string]interface{}{"object": accessLogsObject}
	if len(where) > 0 {
		req["where"] = map[string]interface{}{accessLogsObject: where}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode load_objects request")
	}

	status, payload, err := c.post(ctx, dev, "load_objects.fcgi", token, body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, NewSessionExpiredError(dev.ID)
	}
	if err := checkStatus(dev.ID, status, payload); err != nil {
		return nil, err
	}

	resp := map[string][]model.AccessLog{}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, NewProtocolError(dev.ID, "malformed load_objects response", payload)
	}
	records, ok := resp[accessLogsObject]
	if !ok {
		return nil, NewProtocolError(dev.ID, "load_objects response without access_logs", payload)
	}

	logs := make([]model.AccessLog, 0, len(records))
	for _, l := range records {
		if filter.AfterID > 0 && l.ID <= filter.AfterID {
			continue
		}
		if filter.Until > 0 && l.Time > filter.Until {
			continue
		}
		l.Source = dev.ID
		logs = append(logs, l)
	}
	sortAccessLogs(logs)

	return logs, nil
}

// Execute posts a raw JSON body to an endpoint of the device API and returns
// the raw response. The ".fcgi" suffix is added when missing.
func (c *Client) Execute(ctx context.Context, dev *model.Device, token, endpoint string, body json.RawMessage) (json.RawMessage, error) {
	endpoint = strings.TrimPrefix(endpoint, "/")
	if endpoint == "" {
		return nil, errors.New("missing endpoint")
	}
	if !strings.HasSuffix(endpoint, ".fcgi") {
		endpoint += ".fcgi"
	}

	status, payload, err := c.post(ctx, dev, endpoint, token, body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, NewSessionExpiredError(dev.ID)
	}
	if err := checkStatus(dev.ID, status, payload); err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(payload) {
		return nil, NewProtocolError(dev.ID, "response is not JSON", payload)
	}

	return json.RawMessage(payload), nil
}

func (c *Client) post(ctx context.Context, dev *model.Device, endpoint, token string, body []byte) (int, []byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := fmt.Sprintf("%s/%s", dev.BaseURL(), endpoint)
	if token != "" {
		u += "?session=" + url.QueryEscape(token)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(http.MethodPost, u, reader)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to create device request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	log.WithFields(log.Fields{
		"device_id": dev.ID,
		"endpoint":  endpoint,
	}).Debug("calling device")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, NewNetworkError(dev.ID, err)
	}
	defer resp.Body.Close()

	payload, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, NewNetworkError(dev.ID, err)
	}

	return resp.StatusCode, payload, nil
}

func checkStatus(deviceID string, status int, payload []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return NewNetworkError(deviceID, errors.Errorf("device answered %d: %s", status, deviceMessage(payload, http.StatusText(status))))
	}
	return NewProtocolError(deviceID, fmt.Sprintf("device answered %d: %s", status, deviceMessage(payload, http.StatusText(status))), payload)
}

// deviceMessage extracts the "error" field devices send along with failures.
func deviceMessage(payload []byte, fallback string) string {
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	return fallback
}

func sortAccessLogs(logs []model.AccessLog) {
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].ID < logs[j].ID
	})
}
