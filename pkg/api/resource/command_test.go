package resource

import (
	"testing"
)

func TestDecodeCommandRequests(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{"object", `{"endpoint":"open_door"}`, 1, false},
		{"array", ` [{"endpoint":"a"},{"endpoint":"b"}]`, 2, false},
		{"empty array", `[]`, 0, true},
		{"empty body", ``, 0, true},
		{"garbage", `{`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommandRequests([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	if _, err := ValidateCommand(&CommandRequest{}); err == nil {
		t.Error("missing endpoint accepted")
	}
	if _, err := ValidateCommand(&CommandRequest{Endpoint: "x", Body: []byte("{")}); err == nil {
		t.Error("invalid body accepted")
	}
	m, err := ValidateCommand(&CommandRequest{TransactionID: "C1", Endpoint: "open_door", Body: []byte(`{"id":1}`)})
	if err != nil {
		t.Fatal(err)
	}
	if m.TransactionID != "C1" || m.Endpoint != "open_door" {
		t.Errorf("command = %+v", m)
	}
}
