package config

import (
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	OpenAlex     OpenAlexConfig     `yaml:"openalex" mapstructure:"openalex"`
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	ORCID        ORCIDConfig        `yaml:"orcid" mapstructure:"orcid"`
	Scrape       ScrapeConfig       `yaml:"scrape" mapstructure:"scrape"`
	Match        MatchConfig        `yaml:"match" mapstructure:"match"`
	Discovery    DiscoveryConfig    `yaml:"discovery" mapstructure:"discovery"`
	Extract      ExtractConfig      `yaml:"extract" mapstructure:"extract"`
	Checkpoint   CheckpointConfig   `yaml:"checkpoint" mapstructure:"checkpoint"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Institutions InstitutionsConfig `yaml:"institutions" mapstructure:"institutions"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// OpenAlexConfig holds bibliometric catalog API settings. The contact email
// goes into the User-Agent per the API's polite-pool convention.
type OpenAlexConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	ContactEmail string `yaml:"contact_email" mapstructure:"contact_email"`
	PageSize     int    `yaml:"page_size" mapstructure:"page_size"`
	MaxPages     int    `yaml:"max_pages" mapstructure:"max_pages"`
	MinHIndex    int    `yaml:"min_h_index" mapstructure:"min_h_index"`
	MinWorks     int    `yaml:"min_works" mapstructure:"min_works"`
	MaxAffiliations int `yaml:"max_affiliations" mapstructure:"max_affiliations"`
}

// SearchConfig holds the metered web-search API settings.
type SearchConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	DelaySecs   float64 `yaml:"delay_secs" mapstructure:"delay_secs"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	ResultCount int     `yaml:"result_count" mapstructure:"result_count"`
}

// ORCIDConfig holds registry lookup settings.
type ORCIDConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	DelaySecs float64 `yaml:"delay_secs" mapstructure:"delay_secs"`
}

// ScrapeConfig controls generic institutional page fetching.
type ScrapeConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DelaySecs   float64 `yaml:"delay_secs" mapstructure:"delay_secs"`
}

// MatchConfig holds name-matching thresholds. These are empirically tuned;
// treat them as knobs, not truths.
type MatchConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
}

// DiscoveryConfig controls the website-discovery phase.
type DiscoveryConfig struct {
	HighValueHIndex  int     `yaml:"high_value_h_index" mapstructure:"high_value_h_index"`
	MediumValueHIndex int    `yaml:"medium_value_h_index" mapstructure:"medium_value_h_index"`
	MinScore         float64 `yaml:"min_score" mapstructure:"min_score"`
	HighConfScore    float64 `yaml:"high_conf_score" mapstructure:"high_conf_score"`
	MediumConfScore  float64 `yaml:"medium_conf_score" mapstructure:"medium_conf_score"`
	MaxQueries       int     `yaml:"max_queries" mapstructure:"max_queries"`
}

// ExtractConfig controls the email-extraction phases.
type ExtractConfig struct {
	MaxContactPages  int     `yaml:"max_contact_pages" mapstructure:"max_contact_pages"`
	MailtoMinScore   float64 `yaml:"mailto_min_score" mapstructure:"mailto_min_score"`
	GeneralMinScore  float64 `yaml:"general_min_score" mapstructure:"general_min_score"`
	CombinedMinScore float64 `yaml:"combined_min_score" mapstructure:"combined_min_score"`
	ContactPageScore float64 `yaml:"contact_page_score" mapstructure:"contact_page_score"`
	GoodEnoughScore  float64 `yaml:"good_enough_score" mapstructure:"good_enough_score"`
	HighConfScore    float64 `yaml:"high_conf_score" mapstructure:"high_conf_score"`
	MediumConfScore  float64 `yaml:"medium_conf_score" mapstructure:"medium_conf_score"`
	FallbackMinScore float64 `yaml:"fallback_min_score" mapstructure:"fallback_min_score"`
	MaxFallback      int     `yaml:"max_fallback" mapstructure:"max_fallback"`
}

// CheckpointConfig controls snapshot persistence.
type CheckpointConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// OutputConfig controls final export.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// InstitutionsConfig points at the institution table file.
type InstitutionsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Institution describes one institution's matching surface: which email
// domains count as theirs, which listing pages to scrape, and which sites
// are known dead ends for email extraction.
type Institution struct {
	Name             string   `yaml:"name"`
	OpenAlexID       string   `yaml:"openalex_id"`
	EmailDomains     []string `yaml:"email_domains"`
	WebsiteDomain    string   `yaml:"website_domain"`
	Directories      []string `yaml:"directories"`
	SkipEmailSites   []string `yaml:"skip_email_sites"`
	ContactPageSites []string `yaml:"contact_page_sites"`
}

// ShortName returns the first word of the institution name, used to match
// affiliation strings from the catalog.
func (i Institution) ShortName() string {
	fields := strings.Fields(i.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// SearchDelay returns the post-call delay for the search API.
func (c SearchConfig) SearchDelay() time.Duration {
	return time.Duration(c.DelaySecs * float64(time.Second))
}

// Timeout returns the per-request timeout for search calls.
func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// FetchDelay returns the post-call delay for generic page fetches.
func (c ScrapeConfig) FetchDelay() time.Duration {
	return time.Duration(c.DelaySecs * float64(time.Second))
}

// Timeout returns the per-request timeout for generic page fetches.
func (c ScrapeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// LookupDelay returns the post-call delay for registry lookups.
func (c ORCIDConfig) LookupDelay() time.Duration {
	return time.Duration(c.DelaySecs * float64(time.Second))
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LABMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("openalex.base_url", "https://api.openalex.org")
	v.SetDefault("openalex.page_size", 200)
	v.SetDefault("openalex.max_pages", 100)
	v.SetDefault("openalex.min_h_index", 10)
	v.SetDefault("openalex.min_works", 30)
	v.SetDefault("openalex.max_affiliations", 15)
	v.SetDefault("search.base_url", "https://api.search.brave.com/res/v1")
	v.SetDefault("search.delay_secs", 0.6)
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.max_retries", 3)
	v.SetDefault("search.result_count", 10)
	v.SetDefault("orcid.base_url", "https://pub.orcid.org/v3.0")
	v.SetDefault("orcid.delay_secs", 0.2)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.delay_secs", 0.3)
	v.SetDefault("match.fuzzy_threshold", 0.85)
	v.SetDefault("discovery.high_value_h_index", 40)
	v.SetDefault("discovery.medium_value_h_index", 20)
	v.SetDefault("discovery.min_score", 0.15)
	v.SetDefault("discovery.high_conf_score", 0.5)
	v.SetDefault("discovery.medium_conf_score", 0.3)
	v.SetDefault("discovery.max_queries", 5000)
	v.SetDefault("extract.max_contact_pages", 7)
	v.SetDefault("extract.mailto_min_score", 0.25)
	v.SetDefault("extract.general_min_score", 0.35)
	v.SetDefault("extract.combined_min_score", 0.4)
	v.SetDefault("extract.contact_page_score", 0.5)
	v.SetDefault("extract.good_enough_score", 0.6)
	v.SetDefault("extract.high_conf_score", 0.6)
	v.SetDefault("extract.medium_conf_score", 0.4)
	v.SetDefault("extract.fallback_min_score", 0.3)
	v.SetDefault("extract.max_fallback", 100)
	v.SetDefault("checkpoint.dir", "checkpoints")
	v.SetDefault("output.dir", "output")
	v.SetDefault("institutions.file", "institutions.yaml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// LoadInstitutions reads the institution table keyed by short institution key.
func LoadInstitutions(path string) (map[string]Institution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read institutions file %s", path)
	}

	var table map[string]Institution
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, eris.Wrap(err, "config: parse institutions file")
	}

	for key, inst := range table {
		if inst.Name == "" {
			return nil, eris.Errorf("config: institution %q has no name", key)
		}
		if inst.OpenAlexID == "" {
			return nil, eris.Errorf("config: institution %q has no openalex_id", key)
		}
		if len(inst.EmailDomains) == 0 {
			return nil, eris.Errorf("config: institution %q has no email domains", key)
		}
	}

	return table, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
