// cmd/migrator/main.go
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/Ultrahd-dev/pronote-assistant/internal/config"
	"github.com/Ultrahd-dev/pronote-assistant/internal/session"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "путь к файлу конфигурации")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return
	}

	if err := run(*configPath, args[0]); err != nil {
		slog.Error("migrator failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func run(configPath, command string) error {
	// Загружаем конфигурацию
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)

	// Подключаемся к базе данных
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ошибка проверки подключения к БД: %w", err)
	}
	logger.Debug("connected to postgres", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)

	// Миграции встроены в бинарник
	goose.SetBaseFS(session.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch command {
	case "up":
		if err := goose.UpContext(ctx, db, session.MigrationsDir); err != nil {
			return fmt.Errorf("ошибка применения миграций: %w", err)
		}
		fmt.Println("Миграции успешно применены")
	case "down":
		if err := goose.DownContext(ctx, db, session.MigrationsDir); err != nil {
			return fmt.Errorf("ошибка отката миграций: %w", err)
		}
		fmt.Println("Миграции успешно откачены")
	case "status":
		if err := goose.StatusContext(ctx, db, session.MigrationsDir); err != nil {
			return fmt.Errorf("ошибка получения статуса миграций: %w", err)
		}
	case "purge":
		n, err := session.NewPostgresStore(db).PurgeExpired(ctx)
		if err != nil {
			return fmt.Errorf("ошибка удаления просроченных сессий: %w", err)
		}
		fmt.Printf("Удалено просроченных сессий: %d\n", n)
	default:
		flag.Usage()
		return fmt.Errorf("неизвестная команда: %s", command)
	}
	return nil
}

func usage() {
	fmt.Println("Использование: migrator [-config FILE] [команда]")
	fmt.Println("Доступные команды:")
	fmt.Println("  up      - Применить все непримененные миграции")
	fmt.Println("  down    - Откатить последнюю миграцию")
	fmt.Println("  status  - Показать статус миграций")
	fmt.Println("  purge   - Удалить просроченные сессии")
	fmt.Println("")
	fmt.Println("Примеры:")
	fmt.Println("  migrator up")
	fmt.Println("  migrator -config /etc/assistant/config.yaml status")
	fmt.Println("  migrator purge")
}
