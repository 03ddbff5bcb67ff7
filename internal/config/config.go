package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

const (
	DefaultUserAgent = "form4-screener/1.0 (ops@form4-screener.example)"

	DefaultSearchURL  = "https://efts.sec.gov/LATEST/search-index"
	DefaultCurrentURL = "https://www.sec.gov/cgi-bin/browse-edgar"
	DefaultIndexURL   = "https://www.sec.gov/Archives/edgar/daily-index"
	DefaultArchiveURL = "https://www.sec.gov"
)

// Endpoints groups the remote base URLs. Tests point them at httptest servers.
type Endpoints struct {
	Search  string `yaml:"search"`
	Current string `yaml:"current"`
	Index   string `yaml:"index"`
	Archive string `yaml:"archive"`
}

type Config struct {
	UserAgent    string
	Threshold    decimal.Decimal
	ResultCount  int
	Timeout      time.Duration
	Workers      int
	RatePerSec   float64
	Retries      uint64
	LookbackDays int
	Sources      []string
	Endpoints    Endpoints

	PDFFile     string
	SummaryFile string
	PublicDir   string
	ArchiveDB   string

	Debug bool
	Trace bool
}

// fileConfig is the optional YAML overlay named by FORM4_CONFIG.
type fileConfig struct {
	UserAgent string    `yaml:"user_agent"`
	Threshold string    `yaml:"threshold"`
	Sources   []string  `yaml:"sources"`
	Endpoints Endpoints `yaml:"endpoints"`
}

func Get(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func GetBool(key, defaultVal string) bool {
	v := strings.ToLower(Get(key))
	if v == "" {
		v = defaultVal
	}
	return v == "1" || v == "true" || v == "yes"
}

func GetInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(Get(key))
	if err != nil {
		return defaultVal
	}
	return n
}

func GetFloat(key string, defaultVal float64) float64 {
	f, err := strconv.ParseFloat(Get(key), 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func GetDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(Get(key))
	if err != nil {
		return defaultVal
	}
	return d
}

func getOr(key, defaultVal string) string {
	if v := Get(key); v != "" {
		return v
	}
	return defaultVal
}

// Default returns the configuration used when nothing is set in the environment.
func Default() Config {
	return Config{
		UserAgent:    DefaultUserAgent,
		Threshold:    decimal.NewFromInt(100000),
		ResultCount:  40,
		Timeout:      20 * time.Second,
		Workers:      4,
		RatePerSec:   8,
		LookbackDays: 5,
		Sources:      []string{"search", "atom", "html", "index"},
		Endpoints: Endpoints{
			Search:  DefaultSearchURL,
			Current: DefaultCurrentURL,
			Index:   DefaultIndexURL,
			Archive: DefaultArchiveURL,
		},
		PDFFile:     "reports/form4_report_{date}.pdf",
		SummaryFile: "summary.txt",
		PublicDir:   "public",
		ArchiveDB:   "public/archive.db",
	}
}

// Load reads .env, the environment and the optional YAML overlay, in that order.
func Load() (Config, error) {
	godotenv.Load(".env")

	cfg := Default()
	cfg.UserAgent = getOr("FORM4_USER_AGENT", cfg.UserAgent)
	if v := Get("FORM4_THRESHOLD"); v != "" {
		t, err := decimal.NewFromString(v)
		if err != nil {
			return cfg, eris.Wrapf(err, "config: FORM4_THRESHOLD %q", v)
		}
		cfg.Threshold = t
	}
	cfg.ResultCount = GetInt("FORM4_RESULT_COUNT", cfg.ResultCount)
	cfg.Timeout = GetDuration("FORM4_TIMEOUT", cfg.Timeout)
	cfg.Workers = GetInt("FORM4_WORKERS", cfg.Workers)
	cfg.RatePerSec = GetFloat("FORM4_RATE", cfg.RatePerSec)
	cfg.Retries = uint64(max(GetInt("FORM4_RETRIES", 0), 0))
	cfg.LookbackDays = GetInt("FORM4_LOOKBACK_DAYS", cfg.LookbackDays)
	if v := Get("FORM4_SOURCES"); v != "" {
		cfg.Sources = splitList(v)
	}
	cfg.Endpoints.Search = getOr("FORM4_SEARCH_URL", cfg.Endpoints.Search)
	cfg.Endpoints.Current = getOr("FORM4_CURRENT_URL", cfg.Endpoints.Current)
	cfg.Endpoints.Index = getOr("FORM4_INDEX_URL", cfg.Endpoints.Index)
	cfg.Endpoints.Archive = getOr("FORM4_ARCHIVE_URL", cfg.Endpoints.Archive)
	cfg.PDFFile = getOr("FORM4_PDF_FILE", cfg.PDFFile)
	cfg.SummaryFile = getOr("FORM4_SUMMARY_FILE", cfg.SummaryFile)
	cfg.PublicDir = getOr("FORM4_PUBLIC_DIR", cfg.PublicDir)
	cfg.ArchiveDB = getOr("FORM4_ARCHIVE_DB", cfg.ArchiveDB)
	cfg.Debug = GetBool("FORM4_DEBUG", "false")
	cfg.Trace = GetBool("FORM4_TRACE", "false")

	if path := Get("FORM4_CONFIG"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "config: read %s", path)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return eris.Wrapf(err, "config: parse %s", path)
	}
	if fc.UserAgent != "" {
		c.UserAgent = fc.UserAgent
	}
	if fc.Threshold != "" {
		t, err := decimal.NewFromString(fc.Threshold)
		if err != nil {
			return eris.Wrapf(err, "config: threshold %q in %s", fc.Threshold, path)
		}
		c.Threshold = t
	}
	if len(fc.Sources) > 0 {
		c.Sources = fc.Sources
	}
	if fc.Endpoints.Search != "" {
		c.Endpoints.Search = fc.Endpoints.Search
	}
	if fc.Endpoints.Current != "" {
		c.Endpoints.Current = fc.Endpoints.Current
	}
	if fc.Endpoints.Index != "" {
		c.Endpoints.Index = fc.Endpoints.Index
	}
	if fc.Endpoints.Archive != "" {
		c.Endpoints.Archive = fc.Endpoints.Archive
	}
	return nil
}

func (c Config) Validate() error {
	if c.UserAgent == "" {
		return eris.New("config: user agent is required by EDGAR")
	}
	if c.Threshold.IsNegative() {
		return eris.Errorf("config: threshold %s is negative", c.Threshold)
	}
	if c.Workers < 1 {
		return eris.Errorf("config: workers must be >= 1, got %d", c.Workers)
	}
	if c.ResultCount < 1 {
		return eris.Errorf("config: result count must be >= 1, got %d", c.ResultCount)
	}
	if c.RatePerSec <= 0 {
		return eris.Errorf("config: rate must be positive, got %v", c.RatePerSec)
	}
	if len(c.Sources) == 0 {
		return eris.New("config: no filing sources configured")
	}
	return nil
}

// PDFPath expands the {date} placeholder in PDFFile.
func (c Config) PDFPath(date time.Time) string {
	return strings.ReplaceAll(c.PDFFile, "{date}", date.Format("2006-01-02"))
}

func splitList(s string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
