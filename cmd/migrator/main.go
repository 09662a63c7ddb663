package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"

	"github.com/IlyasAtabaev731/market/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/ilyakaznacheev/cleanenv"
)

func main() {
	var configPath, dbUrl, migrationsPath, migrationsTable string
	var down bool

	flag.StringVar(&configPath, "config", "", "api config file to take postgres settings from")
	flag.StringVar(&dbUrl, "db-url", "", "postgres url, overrides -config")
	flag.StringVar(&migrationsPath, "migrations-path", "./migrations", "path to migrations")
	flag.StringVar(&migrationsTable, "migrations-table", "migrations", "name of migrations table")
	flag.BoolVar(&down, "down", false, "roll back every migration instead of applying")
	flag.Parse()

	if dbUrl == "" {
		if configPath == "" {
			panic("either -db-url or -config is required")
		}
		var cfg config.Config
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			panic("failed to read config: " + err.Error())
		}
		dbUrl = cfg.PostgresURL()
	}
	if migrationsPath == "" {
		panic("migrations path is required")
	}

	target, err := url.Parse(dbUrl)
	if err != nil {
		panic(fmt.Sprintf("invalid db url: %v", err))
	}
	q := target.Query()
	q.Set("x-migrations-table", migrationsTable)
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	target.RawQuery = q.Encode()

	m, err := migrate.New("file://"+migrationsPath, target.String())
	if err != nil {
		panic(err)
	}
	defer m.Close()

	apply, verb := m.Up, "applied"
	if down {
		apply, verb = m.Down, "rolled back"
	}

	if err := apply(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("nothing to migrate")
			return
		}
		panic(err)
	}

	fmt.Printf("migrations %s successfully\n", verb)
}
