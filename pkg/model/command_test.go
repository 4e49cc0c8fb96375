package model

import (
	"encoding/json"
	"testing"
)

func TestCommand_ApplyDefaults(t *testing.T) {
	defaults := map[string]interface{}{"object": "users", "limit": 50}

	tests := []struct {
		name string
		body string
		want map[string]interface{}
	}{
		{
			name: "fills unset keys",
			body: `{"where":{"users":{"id":3}}}`,
			want: map[string]interface{}{"object": "users", "limit": float64(50), "where": map[string]interface{}{"users": map[string]interface{}{"id": float64(3)}}},
		},
		{
			name: "body wins",
			body: `{"object":"groups","limit":1}`,
			want: map[string]interface{}{"object": "groups", "limit": float64(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Command{Body: json.RawMessage(tt.body)}
			if err := c.ApplyDefaults(defaults); err != nil {
				t.Fatalf("ApplyDefaults() error = %v", err)
			}
			var got map[string]interface{}
			if err := json.Unmarshal(c.Body, &got); err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("body = %s", c.Body)
			}
			for k, v := range tt.want {
				if b, _ := json.Marshal(got[k]); string(b) != mustJSON(v) {
					t.Errorf("body[%q] = %s, want %s", k, b, mustJSON(v))
				}
			}
		})
	}

	for _, body := range []string{"", `[1,2]`, `"text"`, `null`} {
		c := &Command{Body: json.RawMessage(body)}
		if err := c.ApplyDefaults(defaults); err != nil {
			t.Errorf("ApplyDefaults(%q) error = %v", body, err)
		}
		if string(c.Body) != body {
			t.Errorf("ApplyDefaults(%q) changed body to %s", body, c.Body)
		}
	}
}

func mustJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
