package config

// Storage backend names.
const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	PublicURL   string          `yaml:"public_url,omitempty" mapstructure:"public_url"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	Metrics     MetricsConfig   `yaml:"metrics,omitempty" mapstructure:"metrics"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path,omitempty" mapstructure:"path"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Auth          RateLimitTier `yaml:"auth,omitempty" mapstructure:"auth"`
	Public        RateLimitTier `yaml:"public,omitempty" mapstructure:"public"`
	Authenticated RateLimitTier `yaml:"authenticated,omitempty" mapstructure:"authenticated"`
}

// RateLimitTier defines request limits for a specific tier.
type RateLimitTier struct {
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	SessionTTL  string `yaml:"session_ttl" mapstructure:"session_ttl"`
	CookieName  string `yaml:"cookie_name,omitempty" mapstructure:"cookie_name"`
	AllowSignup bool   `yaml:"allow_signup" mapstructure:"allow_signup"`
	// BootstrapFirstSuperadmin grants SUPERADMIN to the first account that
	// signs up while no SUPERADMIN exists.
	BootstrapFirstSuperadmin bool       `yaml:"bootstrap_first_superadmin" mapstructure:"bootstrap_first_superadmin"`
	Users                    []SeedUser `yaml:"users,omitempty" mapstructure:"users"`
}

// SeedUser defines an account created or refreshed from config on start.
type SeedUser struct {
	Email    string `yaml:"email" mapstructure:"email"`
	Password string `yaml:"password" mapstructure:"password"`
	Role     string `yaml:"role,omitempty" mapstructure:"role"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
	// ConnectTimeout bounds the retry loop while the database comes up.
	ConnectTimeout string `yaml:"connect_timeout,omitempty" mapstructure:"connect_timeout"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// StorageConfig selects the object storage backend for media.
type StorageConfig struct {
	Backend       string             `yaml:"backend" mapstructure:"backend"`
	MaxUploadSize string             `yaml:"max_upload_size,omitempty" mapstructure:"max_upload_size"`
	Local         LocalStorageConfig `yaml:"local,omitempty" mapstructure:"local"`
	S3            S3StorageConfig    `yaml:"s3,omitempty" mapstructure:"s3"`
}

// LocalStorageConfig stores media on the local filesystem and serves it
// from BaseURL.
type LocalStorageConfig struct {
	Root    string `yaml:"root" mapstructure:"root"`
	BaseURL string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// S3StorageConfig contains settings for S3-compatible media storage.
type S3StorageConfig struct {
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
	// PublicBaseURL, when set, is used verbatim as the prefix of public
	// object URLs (CDN in front of the bucket).
	PublicBaseURL string `yaml:"public_base_url,omitempty" mapstructure:"public_base_url"`
}

// ImageGenConfig configures the AI image generation gateway.
type ImageGenConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	APIKey   string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Model    string `yaml:"model,omitempty" mapstructure:"model"`
	Size     string `yaml:"size,omitempty" mapstructure:"size"`
	Timeout  string `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// SiteConfig contains public site settings.
type SiteConfig struct {
	NameAR        string `yaml:"name_ar" mapstructure:"name_ar"`
	NameEN        string `yaml:"name_en" mapstructure:"name_en"`
	DefaultLocale string `yaml:"default_locale" mapstructure:"default_locale"`
	ContactEmail  string `yaml:"contact_email,omitempty" mapstructure:"contact_email"`
}
