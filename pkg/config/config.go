// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultPath is loaded when no path is given and EnvConfigPath is unset.
	DefaultPath = "./config.yaml"
	// EnvConfigPath overrides the default config file location.
	EnvConfigPath = "REGRESSION_NOTIFIER_CONFIG"
	// KeyringService is the OS keyring service holding SMTP passwords.
	KeyringService = "regression-notifier"

	defaultSMTPPort      = 25
	defaultListenAddress = ":8080"
	defaultKafkaGroupID  = "regression-notifier"
)

type Notifier struct {
	// AuthorAddress is always notified when a regression is found.
	AuthorAddress  string `yaml:"authorAddress"`
	NotifyCulprits bool   `yaml:"notifyCulprits"`
	AttachLog      bool   `yaml:"attachLog"`
	// SubjectTemplate is a Go text/template with sprig functions.
	SubjectTemplate string `yaml:"subjectTemplate"`
	LogFilename     string `yaml:"logFilename"`
	// MaxLogBytes limits the attached console log to its last N bytes.
	MaxLogBytes int64 `yaml:"maxLogBytes"`
}

type Mail struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// PasswordFromKeyring reads the password for Username from the OS keyring
	// (service KeyringService) instead of the config file.
	PasswordFromKeyring bool   `yaml:"passwordFromKeyring"`
	InsecureSkipVerify  bool   `yaml:"insecureSkipVerify"`
	SenderAddress       string `yaml:"senderAddress"`
	SenderName          string `yaml:"senderName"`
}

type Identity struct {
	// DefaultDomain is appended to committer ids that have no mapping.
	DefaultDomain string `yaml:"defaultDomain"`
	// Users maps committer ids to addresses.
	Users map[string]string `yaml:"users"`
}

type Server struct {
	ListenAddress string    `yaml:"listenAddress"`
	RateLimit     RateLimit `yaml:"rateLimit"`
	// ConsoleLogRoot is the only directory posted events may reference a
	// console log in. Empty rejects events that name one.
	ConsoleLogRoot string `yaml:"consoleLogRoot"`
}

// RateLimit bounds the build events accepted per client and, within a
// client, per job. A zero rate uses the built-in default; a negative rate
// disables that limit.
type RateLimit struct {
	Rate     float64 `yaml:"rate"`
	Burst    int     `yaml:"burst"`
	JobRate  float64 `yaml:"jobRate"`
	JobBurst int     `yaml:"jobBurst"`
}

type Kafka struct {
	Brokers []string  `yaml:"brokers"`
	Topic   string    `yaml:"topic"`
	GroupID string    `yaml:"groupID"`
	TLS     KafkaTLS  `yaml:"tls"`
	SASL    KafkaSASL `yaml:"sasl"`
	// ConsoleLogRoot plays the role of server.consoleLogRoot for events
	// read from Kafka.
	ConsoleLogRoot string `yaml:"consoleLogRoot"`
}

type KafkaTLS struct {
	Enabled bool `yaml:"enabled"`
	// CAFile is a PEM bundle used instead of the system roots.
	CAFile             string `yaml:"caFile"`
	CertFile           string `yaml:"certFile"`
	KeyFile            string `yaml:"keyFile"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

type KafkaSASL struct {
	// Mechanism is one of PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512. Empty
	// disables SASL.
	Mechanism string `yaml:"mechanism"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type Config struct {
	Notifier Notifier `yaml:"notifier"`
	Mail     Mail     `yaml:"mail"`
	Identity Identity `yaml:"identity"`
	Server   Server   `yaml:"server"`
	Kafka    Kafka    `yaml:"kafka"`
}

// Load loads the configuration from a file path.
// If configPath is empty, the REGRESSION_NOTIFIER_CONFIG environment variable
// is used, falling back to "./config.yaml". Defaults are applied.
func Load(configPath ...string) (Config, error) {
	var path string

	switch {
	case len(configPath) > 0 && configPath[0] != "":
		path = configPath[0]
	case os.Getenv(EnvConfigPath) != "":
		path = os.Getenv(EnvConfigPath)
	default:
		path = DefaultPath
	}

	var config Config

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open regression notifier config file %s: %w", path, err)
	}

	err = yaml.Unmarshal(content, &config)
	if err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}
	config.ApplyDefaults()
	return config, nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Mail.Port == 0 {
		c.Mail.Port = defaultSMTPPort
	}
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = defaultListenAddress
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = defaultKafkaGroupID
	}
}

// ValidateMail checks the settings needed to deliver mail.
func (c *Config) ValidateMail() error {
	var errs []error
	if c.Mail.Host == "" {
		errs = append(errs, errors.New("mail.host is required"))
	}
	if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
		errs = append(errs, fmt.Errorf("mail.port %d is out of range", c.Mail.Port))
	}
	if c.Mail.PasswordFromKeyring && c.Mail.Username == "" {
		errs = append(errs, errors.New("mail.username is required with mail.passwordFromKeyring"))
	}
	if c.Notifier.MaxLogBytes < 0 {
		errs = append(errs, errors.New("notifier.maxLogBytes must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateKafka checks the settings needed to consume build events.
func (c *Config) ValidateKafka() error {
	var errs []error
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required"))
	}
	if c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required"))
	}
	switch c.Kafka.SASL.Mechanism {
	case "", "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
	default:
		errs = append(errs, fmt.Errorf("kafka.sasl.mechanism %q is not supported", c.Kafka.SASL.Mechanism))
	}
	if (c.Kafka.TLS.CertFile == "") != (c.Kafka.TLS.KeyFile == "") {
		errs = append(errs, errors.New("kafka.tls.certFile and kafka.tls.keyFile must be set together"))
	}
	return errors.Join(errs...)
}

// ResolvePassword returns the SMTP password, reading it from the OS keyring
// when PasswordFromKeyring is set.
func (m Mail) ResolvePassword() (string, error) {
	if !m.PasswordFromKeyring {
		return m.Password, nil
	}
	secret, err := keyring.Get(KeyringService, m.Username)
	if err != nil {
		return "", fmt.Errorf("reading SMTP password for %s from keyring: %w", m.Username, err)
	}
	return secret, nil
}
