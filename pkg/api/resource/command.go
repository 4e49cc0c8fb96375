package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
)

// CommandRequest is a command as submitted by an administrator.
type CommandRequest struct {
	TransactionID string          `json:"transactionid"`
	Verb          string          `json:"verb"`
	Endpoint      string          `json:"endpoint"`
	Body          json.RawMessage `json:"body"`
	ContentType   string          `json:"contentType"`
	QueryString   string          `json:"queryString"`
}

type CommandResource struct {
	TransactionID string          `json:"transactionid"`
	DeviceID      string          `json:"deviceId"`
	Verb          string          `json:"verb"`
	Endpoint      string          `json:"endpoint"`
	Body          json.RawMessage `json:"body,omitempty"`
	ContentType   string          `json:"contentType,omitempty"`
	QueryString   string          `json:"queryString,omitempty"`
	State         string          `json:"state"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
	DeliveredAt   *time.Time      `json:"deliveredAt,omitempty"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

type CommandListResource struct {
	Members []*CommandResource `json:"members"`
}

type EnqueuedResource struct {
	Status         string   `json:"status"`
	DeviceID       string   `json:"deviceId"`
	TransactionIDs []string `json:"transactionIds"`
}

func NewCommand(m *model.Command) (out *CommandResource) {
	out = &CommandResource{
		TransactionID: m.TransactionID,
		DeviceID:      m.DeviceID,
		Verb:          m.Verb,
		Endpoint:      m.Endpoint,
		Body:          m.Body,
		ContentType:   m.ContentType,
		QueryString:   m.QueryString,
		State:         string(m.State),
		Result:        m.Result,
		Error:         m.Error,
		EnqueuedAt:    m.EnqueuedAt,
	}

	if !m.DeliveredAt.IsZero() {
		t := m.DeliveredAt
		out.DeliveredAt = &t
	}
	if !m.CompletedAt.IsZero() {
		t := m.CompletedAt
		out.CompletedAt = &t
	}
	if len(out.Result) == 0 {
		out.Result = nil
	}

	return // out
}

func NewCommandList(m []model.Command) (out *CommandListResource) {
	out = &CommandListResource{
		Members: make([]*CommandResource, 0, len(m)),
	}

	for i := range m {
		out.Members = append(out.Members, NewCommand(&m[i]))
	}

	return // out
}

func NewEnqueued(deviceID string, m []model.Command) *EnqueuedResource {
	out := &EnqueuedResource{
		Status:         "queued",
		DeviceID:       deviceID,
		TransactionIDs: make([]string, 0, len(m)),
	}
	for _, c := range m {
		out.TransactionIDs = append(out.TransactionIDs, c.TransactionID)
	}
	return out
}

// DecodeCommandRequests accepts a single command object or an array of them.
func DecodeCommandRequests(data []byte) ([]CommandRequest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("request body is empty")
	}

	if data[0] == '[' {
		var rs []CommandRequest
		if err := json.Unmarshal(data, &rs); err != nil {
			return nil, err
		}
		if len(rs) == 0 {
			return nil, fmt.Errorf("no commands given")
		}
		return rs, nil
	}

	var r CommandRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return []CommandRequest{r}, nil
}

func ValidateCommand(r *CommandRequest) (m *model.Command, err error) {
	if r.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if len(r.Body) > 0 && !json.Valid(r.Body) {
		return nil, fmt.Errorf("body must be valid JSON")
	}

	m = &model.Command{
		TransactionID: r.TransactionID,
		Verb:          r.Verb,
		Endpoint:      r.Endpoint,
		Body:          r.Body,
		ContentType:   r.ContentType,
		QueryString:   r.QueryString,
	}

	return m, nil
}
