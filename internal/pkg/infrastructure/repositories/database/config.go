package database

import (
	"fmt"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DriverSQLite   string = "sqlite"
	DriverPostgres string = "postgres"
)

type Config struct {
	driver   string
	path     string
	host     string
	port     string
	user     string
	password string
	dbname   string
	sslmode  string
}

func NewSQLiteConfig(path string) Config {
	return Config{
		driver: DriverSQLite,
		path:   path,
	}
}

func NewPostgreSQLConfig(host, port, user, password, dbname, sslmode string) Config {
	return Config{
		driver:   DriverPostgres,
		host:     host,
		port:     port,
		user:     user,
		password: password,
		dbname:   dbname,
		sslmode:  sslmode,
	}
}

// LoadConfiguration reads the database settings from the environment. The
// postgres settings are only required when DB_DRIVER is set to postgres.
func LoadConfiguration(log zerolog.Logger) Config {
	driver := env.GetVariableOrDefault(log, "DB_DRIVER", DriverSQLite)

	if driver == DriverPostgres {
		return NewPostgreSQLConfig(
			env.GetVariableOrDie(log, "POSTGRES_HOST", "database host"),
			env.GetVariableOrDefault(log, "POSTGRES_PORT", "5432"),
			env.GetVariableOrDie(log, "POSTGRES_USER", "database user"),
			env.GetVariableOrDie(log, "POSTGRES_PASSWORD", "database password"),
			env.GetVariableOrDie(log, "POSTGRES_DBNAME", "database name"),
			env.GetVariableOrDefault(log, "POSTGRES_SSLMODE", "disable"),
		)
	}

	if driver != DriverSQLite {
		log.Fatal().Str("driver", driver).Msg("unsupported database driver")
	}

	return NewSQLiteConfig(env.GetVariableOrDefault(log, "SQLITE_PATH", "sensordata.db"))
}

func (c Config) Driver() string {
	return c.driver
}

func (c Config) dialector() (gorm.Dialector, error) {
	switch c.driver {
	case DriverSQLite:
		if c.path == "" {
			return nil, fmt.Errorf("no sqlite path configured")
		}
		return sqlite.Open(c.path), nil
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			c.host, c.port, c.user, c.password, c.dbname, c.sslmode)
		return postgres.Open(dsn), nil
	}

	return nil, fmt.Errorf("unsupported database driver %q", c.driver)
}
