package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Application configuration
	SourcesDir        string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Normalization defaults
	HomeCountry string
	HomeRegion  string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
