package sources

import (
	"testing"
)

const sampleResultsPage = `<html><body>
<table class="tablaResultados">
  <tr><th>Convocatoria</th><th>Organismo</th><th>Fecha</th></tr>
  <tr>
    <td><a href="/convocatorias/detalle?id=834921">Ayudas a la producción de cortometrajes</a></td>
    <td>Xunta de Galicia</td>
    <td>12/08/2026</td>
  </tr>
  <tr>
    <td><a href="https://example.org/convocatorias/detalle?id=834922">Premio nacional de fotografía</a></td>
    <td>Ministerio de Cultura</td>
    <td>13/08/2026</td>
  </tr>
  <tr>
    <td>corto</td><td>x</td><td>y</td>
  </tr>
</table>
</body></html>`

func TestHTMLAdapter_Parse_ResultsTable(t *testing.T) {
	adapter := NewHTMLAdapter("https://example.org/convocatorias/busqueda")

	records, err := adapter.Parse([]byte(sampleResultsPage))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Header row skipped, too-short title row dropped.
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first["titulo"] != "Ayudas a la producción de cortometrajes" {
		t.Errorf("Unexpected title: %v", first["titulo"])
	}
	if first["organismo"] != "Xunta de Galicia" {
		t.Errorf("Unexpected issuer: %v", first["organismo"])
	}
	if first["external_id"] != "834921" {
		t.Errorf("Expected external id from link, got %v", first["external_id"])
	}
	if first["url"] != "https://example.org/convocatorias/detalle?id=834921" {
		t.Errorf("Expected absolutized URL, got %v", first["url"])
	}
	if first["fecha_publicacion"] != "12/08/2026" {
		t.Errorf("Unexpected publication date: %v", first["fecha_publicacion"])
	}

	second := records[1]
	if second["url"] != "https://example.org/convocatorias/detalle?id=834922" {
		t.Errorf("Absolute link must pass through unchanged, got %v", second["url"])
	}
}

func TestHTMLAdapter_Parse_RowsWithoutTableClass(t *testing.T) {
	adapter := NewHTMLAdapter("https://example.org")

	page := `<html><body><table>
	  <tr><th>Título</th><th>Organismo</th><th>Fecha</th></tr>
	  <tr><td><a href="?id=5">Subvenciones para documentales</a></td><td>ICAA</td><td>01/02/2026</td></tr>
	</table></body></html>`

	records, err := adapter.Parse([]byte(page))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected fallback row scan to find 1 record, got %d", len(records))
	}
	if records[0]["external_id"] != "5" {
		t.Errorf("Expected external id '5', got %v", records[0]["external_id"])
	}
}

func TestHTMLAdapter_Parse_NoRows(t *testing.T) {
	adapter := NewHTMLAdapter("https://example.org")

	records, err := adapter.Parse([]byte(`<html><body><p>Sin resultados</p></body></html>`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}
