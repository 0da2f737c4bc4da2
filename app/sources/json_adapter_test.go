package sources

import (
	"testing"
)

func TestJSONAdapter_Parse_BareArray(t *testing.T) {
	adapter := NewJSONAdapter()

	records, err := adapter.Parse([]byte(`[
		{"descripcion": "Ayudas al cine", "numeroConvocatoria": "1"},
		{"descripcion": "Premio de fotografía", "numeroConvocatoria": "2"}
	]`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0]["numeroConvocatoria"] != "1" {
		t.Errorf("Unexpected first record: %v", records[0])
	}
}

func TestJSONAdapter_Parse_RowsWrapper(t *testing.T) {
	adapter := NewJSONAdapter()

	records, err := adapter.Parse([]byte(`{"rows": [{"descripcion": "Ayudas", "id": 7}]}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
}

func TestJSONAdapter_Parse_DataWrapper(t *testing.T) {
	adapter := NewJSONAdapter()

	records, err := adapter.Parse([]byte(`{"data": [{"titulo": "Ayudas"}, {"titulo": "Premios"}]}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
}

func TestJSONAdapter_Parse_UnrecognizedLayout(t *testing.T) {
	adapter := NewJSONAdapter()

	cases := []string{
		`{"items": []}`,
		`"just a string"`,
		`not json at all`,
	}

	for _, payload := range cases {
		if _, err := adapter.Parse([]byte(payload)); err == nil {
			t.Errorf("Expected error for payload %q", payload)
		}
	}
}

func TestAdapterFor(t *testing.T) {
	cases := []struct {
		format  string
		wantErr bool
	}{
		{FormatJSON, false},
		{FormatHTML, false},
		{FormatFeed, false},
		{"csv", true},
	}

	for _, tc := range cases {
		_, err := AdapterFor(&Config{Format: tc.format, URL: "https://example.org"})
		if (err != nil) != tc.wantErr {
			t.Errorf("AdapterFor(%q): unexpected error state: %v", tc.format, err)
		}
	}
}
