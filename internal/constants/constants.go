package constants

import "time"

// CacheTTL groups the named expiration classes applied per cache entry kind.
var CacheTTL = struct {
	MemberRecord  time.Duration
	CompositeCard time.Duration
	QRPayload     time.Duration
	RenderedPDF   time.Duration
}{
	MemberRecord:  30 * time.Minute, // medium - member snapshots
	CompositeCard: 24 * time.Hour,   // long - assembled card artifacts
	QRPayload:     24 * time.Hour,   // long - per-membership QR images
	RenderedPDF:   24 * time.Hour,   // long - rendered documents
}

// MemberCacheDefaults holds warm-up tuning for the member lookup cache.
var MemberCacheDefaults = struct {
	WarmUpLimit         int
	WarmUpChunkSize     int
	WarmUpMaxGoroutines int
}{
	WarmUpLimit:         500,
	WarmUpChunkSize:     50,
	WarmUpMaxGoroutines: 10,
}

// CardDefaults holds card pipeline tuning.
var CardDefaults = struct {
	Template         string
	Issuer           string
	ValidityDays     int
	QRSizePixels     int
	BatchConcurrency int
}{
	Template:         "standard",
	Issuer:           "Membership Office",
	ValidityDays:     365,
	QRSizePixels:     256,
	BatchConcurrency: 10,
}

// ValkeyConfig holds cache client tuning.
var ValkeyConfig = struct {
	ReadyTimeout      time.Duration
	BlockingPoolSize  int
	PipelineMultiplex int
	ConnWriteTimeout  time.Duration
	DialTimeout       time.Duration
}{
	ReadyTimeout:      5 * time.Second,
	BlockingPoolSize:  100,
	PipelineMultiplex: 4,
	ConnWriteTimeout:  10 * time.Second,
	DialTimeout:       5 * time.Second,
}

// DatabaseConfig holds Postgres pool settings.
var DatabaseConfig = struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}{
	MaxOpenConns:    25,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
	PingTimeout:     5 * time.Second,
}

// DatabaseDefaults holds fallback Postgres connection settings.
var DatabaseDefaults = struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}{
	Host:     "localhost",
	Port:     5432,
	User:     "membership",
	Password: "membership",
	Database: "membership",
}

// RequestTimeout holds per-surface deadlines applied by the HTTP handlers.
var RequestTimeout = struct {
	Lookup   time.Duration
	Generate time.Duration
	Batch    time.Duration
	Admin    time.Duration
}{
	Lookup:   5 * time.Second,
	Generate: 30 * time.Second,
	Batch:    5 * time.Minute,
	Admin:    10 * time.Second,
}

// ServerTimeout holds HTTP server hardening values.
var ServerTimeout = struct {
	ReadHeader     time.Duration
	Read           time.Duration
	Write          time.Duration
	Idle           time.Duration
	MaxHeaderBytes int
}{
	ReadHeader:     5 * time.Second,
	Read:           30 * time.Second,
	Write:          5 * time.Minute, // batch card responses can be large
	Idle:           120 * time.Second,
	MaxHeaderBytes: 1 << 20,
}

// ServerConfig holds router-level settings.
var ServerConfig = struct {
	TrustedProxies []string
}{
	TrustedProxies: []string{"127.0.0.1"},
}
