// Package config loads the aggload CLI configuration: the target dialect,
// logging options, an optional database DSN, and the aggregate schema
// description the SQL preview runs over.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"aggload/dialect"
	"aggload/logging"
	"aggload/mapping"
)

// Config holds the CLI configuration.
type Config struct {
	Dialect  string         `mapstructure:"dialect"`
	Log      logging.Config `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Schema   SchemaConfig   `mapstructure:"schema"`
}

// DatabaseConfig holds the optional connection used for EXPLAIN previews.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// SchemaConfig describes the aggregates to preview.
type SchemaConfig struct {
	Entities []EntityConfig `mapstructure:"entities"`
}

// EntityConfig describes one aggregate root.
type EntityConfig struct {
	Name        string             `mapstructure:"name"`
	Table       string             `mapstructure:"table"`
	ID          string             `mapstructure:"id"`
	Fields      []string           `mapstructure:"fields"`
	Collections []CollectionConfig `mapstructure:"collections"`
}

// CollectionConfig describes one one-to-many collection of an aggregate.
type CollectionConfig struct {
	Property      string `mapstructure:"property"`
	Target        string `mapstructure:"target"`
	Keyed         *bool  `mapstructure:"keyed"`
	BackReference string `mapstructure:"back_reference"`
	KeyColumn     string `mapstructure:"key_column"`
}

// Load reads configuration from a file and the environment. Environment
// variables use the AGGLOAD_ prefix with underscores for nesting, e.g.
// AGGLOAD_DATABASE_DSN.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("dialect", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("aggload")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.aggload")
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("AGGLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for problems that should fail fast.
func (c *Config) Validate() error {
	if _, ok := dialect.ByName(c.Dialect); !ok {
		return fmt.Errorf("unknown dialect %q", c.Dialect)
	}
	if len(c.Schema.Entities) == 0 {
		return fmt.Errorf("schema defines no entities")
	}

	names := make(map[string]bool, len(c.Schema.Entities))
	for _, e := range c.Schema.Entities {
		if e.Name == "" {
			return fmt.Errorf("entity with empty name")
		}
		if e.ID == "" {
			return fmt.Errorf("entity %s has no id field", e.Name)
		}
		names[e.Name] = true
	}
	for _, e := range c.Schema.Entities {
		for _, col := range e.Collections {
			if !names[col.Target] {
				return fmt.Errorf("entity %s references undefined collection target %q", e.Name, col.Target)
			}
		}
	}
	return nil
}

// BuildSchema turns the schema description into a mapping schema.
func (c *Config) BuildSchema() (*mapping.Schema, error) {
	b := mapping.NewSchemaBuilder()
	for _, e := range c.Schema.Entities {
		eb := b.Entity(e.Name)
		if e.Table != "" {
			eb.Table(e.Table)
		}
		eb.ID(e.ID)
		for _, field := range e.Fields {
			eb.Field(field)
		}
		for _, col := range e.Collections {
			var opts []mapping.CollectionOption
			if col.Keyed != nil && !*col.Keyed {
				opts = append(opts, mapping.Unkeyed())
			}
			if col.BackReference != "" {
				opts = append(opts, mapping.WithBackReference(col.BackReference))
			}
			if col.KeyColumn != "" {
				opts = append(opts, mapping.WithKeyColumn(col.KeyColumn))
			}
			eb.Collection(col.Property, col.Target, opts...)
		}
	}
	return b.Build()
}
