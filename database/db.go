package database

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"kazi/config"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the configured database with pooling and retry.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gormLogger := logger.Default.LogMode(logger.Silent)
	if cfg.Debug {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 1
	}
	var db *gorm.DB
	backoff := time.Second
	for attempt := 0; attempt < retries; attempt++ {
		db, err = gorm.Open(dialector, &gorm.Config{Logger: gormLogger, TranslateError: true})
		if err == nil {
			break
		}
		zap.L().Warn("database connect failed", zap.Int("attempt", attempt+1), zap.Error(err))
		time.Sleep(backoff)
		backoff *= 2
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

// MemoryDSN names a private in-memory SQLite database.
func MemoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

// OpenMemory opens and migrates a fresh in-memory SQLite database.
func OpenMemory() (*gorm.DB, error) {
	db, err := Connect(config.DatabaseConfig{Driver: "sqlite", DSN: MemoryDSN(), ConnectRetries: 1})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// SQLX exposes the pool behind db for hand-written read queries.
func SQLX(db *gorm.DB, driver string) (*sqlx.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	name := "mysql"
	if driver == "sqlite" {
		name = "sqlite3"
	}
	return sqlx.NewDb(sqlDB, name), nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = MemoryDSN()
		}
		return sqlite.Open(dsn), nil
	case "mysql", "":
		dsn, err := mysqlDSN(cfg)
		if err != nil {
			return nil, err
		}
		return gormmysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

func mysqlDSN(cfg config.DatabaseConfig) (string, error) {
	dsn := cfg.DSN
	if dsn == "" {
		params := cfg.Params
		if !strings.Contains(params, "tls=") {
			switch getenv("DB_TLS", "false") {
			case "true", "preferred":
				if getenv("DB_TLS_VERIFY", "false") == "true" {
					params += "&tls=custom"
				} else {
					params += "&tls=true"
				}
			}
		}
		for _, p := range []string{"timeout=10s", "readTimeout=10s", "writeTimeout=10s"} {
			key := strings.SplitN(p, "=", 2)[0] + "="
			if !strings.Contains(params, key) {
				params += "&" + p
			}
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s", cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.Name, strings.TrimPrefix(params, "&"))
	}

	safeDSN := dsn
	if cfg.Pass != "" {
		safeDSN = strings.Replace(safeDSN, cfg.Pass, "******", 1)
	}
	zap.L().Info("database dsn", zap.String("dsn", safeDSN))

	if strings.Contains(dsn, "tls=custom") {
		tlsCfg, err := customTLSConfig()
		if err != nil {
			return "", err
		}
		if err := mysqldriver.RegisterTLSConfig("custom", tlsCfg); err != nil {
			return "", err
		}
	}
	return dsn, nil
}

func customTLSConfig() (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caPath := getenv("DB_TLS_CA_PATH", ""); caPath != "" {
		caCert, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("failed reading DB TLS CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to append CA certs")
		}
		tlsCfg.RootCAs = pool
	}
	clientCert := getenv("DB_TLS_CLIENT_CERT", "")
	clientKey := getenv("DB_TLS_CLIENT_KEY", "")
	if clientCert != "" && clientKey != "" {
		cert, err := tls.LoadX509KeyPair(clientCert, clientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}
