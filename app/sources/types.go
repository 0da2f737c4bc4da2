package sources

// Supported payload formats.
const (
	FormatJSON = "json"
	FormatHTML = "html"
	FormatFeed = "feed"
)

// Config describes one registered ingestion source, loaded from a YAML
// file whose basename becomes the source name.
type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Format   string         `yaml:"format"`
	Settings ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	Timeout         int  `yaml:"timeout"`          // seconds
	MaxRecords      int  `yaml:"max_records"`
	EnrichDetails   bool `yaml:"enrich_details"` // fetch detail pages for missing descriptions
}
