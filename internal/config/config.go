package config

// Config holds relay daemon configuration values.
type Config struct {
	// InboundDir is the smstools mail-drop directory scanned for incoming messages.
	InboundDir string `mapstructure:"inbound_dir" yaml:"inbound_dir"`
	// OutboundDir is where rendered outgoing messages are spooled for the modem.
	OutboundDir string `mapstructure:"outbound_dir" yaml:"outbound_dir"`
	// ArchiveDir receives inbound files after processing so they are never reprocessed.
	// Empty means <inbound_dir>/archived.
	ArchiveDir string `mapstructure:"archive_dir" yaml:"archive_dir"`
	// DatabasePath is the sqlite database file holding users, conversations,
	// memberships, invitations and the service-area table.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	// ServiceNumber is the phone number outgoing messages are sent from.
	ServiceNumber string `mapstructure:"service_number" yaml:"service_number"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		InboundDir:    "/var/spool/sms/incoming",
		OutboundDir:   "/var/spool/sms/outgoing",
		ArchiveDir:    "",
		DatabasePath:  "smircd.db",
		ServiceNumber: "",
		LogLevel:      "info",
	}
}

// ResolvedArchiveDir returns the archive directory, applying the
// inbound-relative default when none is configured.
func (c Config) ResolvedArchiveDir() string {
	if c.ArchiveDir != "" {
		return c.ArchiveDir
	}
	return c.InboundDir + "/archived"
}
