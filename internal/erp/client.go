// Package erp provides read-only access to the retailer's MS SQL Server ERP database.
// It is used to pre-fill client records from the ERP customer register.
package erp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/brasmat/proposal-api/internal/config"
	_ "github.com/microsoft/go-mssqldb" // MS SQL Server driver
	"go.uber.org/zap"
)

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 10 * time.Second
	defaultBackoffFactor  = 2.0

	defaultHealthCheckTimeout = 5 * time.Second
	defaultQueryTimeout       = 30 * time.Second
)

// ErrCustomerNotFound is returned when no ERP customer has the given document
var ErrCustomerNotFound = errors.New("customer not found in ERP")

// ErrNotEnabled is returned by queries on a nil client
var ErrNotEnabled = errors.New("erp client not initialized")

const customerByDocumentQuery = `SELECT TOP 1 codigo, razao_social, email, telefone
FROM dbo.clientes
WHERE documento = @p1 AND ativo = 1`

// Customer is a row from the ERP customer register
type Customer struct {
	Code     string
	Name     string
	Document string
	Email    string
	Phone    string
}

// Client provides read-only access to the ERP database
type Client struct {
	db           *sql.DB
	logger       *zap.Logger
	queryTimeout time.Duration
}

// HealthStatus represents the health check result for the ERP connection
type HealthStatus struct {
	Status    string        `json:"status"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
	MaxOpen   int           `json:"max_open_connections"`
	Open      int           `json:"open_connections"`
	InUse     int           `json:"in_use"`
	Idle      int           `json:"idle"`
	WaitCount int64         `json:"wait_count"`
}

// NewClient opens the connection pool with retries. It returns nil, nil when the ERP is
// disabled or credentials are missing, since the lookup is optional.
func NewClient(cfg *config.ERPConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("ERP connection disabled")
		return nil, nil
	}

	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("ERP enabled but missing credentials, skipping connection",
			zap.Bool("url_present", cfg.URL != ""),
			zap.Bool("user_present", cfg.User != ""),
			zap.Bool("password_present", cfg.Password != ""),
		)
		return nil, nil
	}

	connStr := buildConnectionString(cfg)

	var (
		db  *sql.DB
		err error
	)
	backoff := defaultInitialBackoff

	for attempt := 1; attempt <= defaultMaxRetries; attempt++ {
		db, err = sql.Open("sqlserver", connStr)
		if err == nil {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
			db.SetMaxIdleConns(cfg.MaxIdleConns)
			db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

			ctx, cancel := context.WithTimeout(context.Background(), defaultHealthCheckTimeout)
			err = db.PingContext(ctx)
			cancel()
			if err == nil {
				logger.Info("ERP connection established", zap.Int("attempts_taken", attempt))
				return NewClientFromDB(db, cfg.QueryTimeoutDuration(), logger), nil
			}
			_ = db.Close()
		}

		logger.Warn("ERP connection attempt failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", defaultMaxRetries),
		)
		if attempt < defaultMaxRetries {
			time.Sleep(backoff)
			backoff = min(time.Duration(float64(backoff)*defaultBackoffFactor), defaultMaxBackoff)
		}
	}

	return nil, fmt.Errorf("failed to connect to ERP after %d attempts: %w", defaultMaxRetries, err)
}

// NewClientFromDB wraps an already opened pool
func NewClientFromDB(db *sql.DB, queryTimeout time.Duration, logger *zap.Logger) *Client {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &Client{db: db, logger: logger, queryTimeout: queryTimeout}
}

// buildConnectionString accepts host:port/database or host:port
func buildConnectionString(cfg *config.ERPConfig) string {
	hostPort, database, _ := strings.Cut(cfg.URL, "/")
	host, port, found := strings.Cut(hostPort, ":")
	if !found || port == "" {
		port = "1433"
	}

	query := url.Values{}
	query.Add("encrypt", "true")
	query.Add("TrustServerCertificate", "false")
	query.Add("connection timeout", "30")
	query.Add("app name", "proposal-api")
	if database != "" {
		query.Add("database", database)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     host + ":" + port,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// NormalizeDocument keeps only the digits of a CPF/CNPJ
func NormalizeDocument(document string) string {
	var b strings.Builder
	for _, r := range document {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LookupCustomer finds an active ERP customer by CPF/CNPJ
func (c *Client) LookupCustomer(ctx context.Context, document string) (*Customer, error) {
	if !c.IsEnabled() {
		return nil, ErrNotEnabled
	}

	normalized := NormalizeDocument(document)
	if normalized == "" {
		return nil, ErrCustomerNotFound
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	var (
		customer     = Customer{Document: normalized}
		email, phone sql.NullString
	)
	err := c.db.QueryRowContext(ctx, customerByDocumentQuery, normalized).
		Scan(&customer.Code, &customer.Name, &email, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		c.logger.Error("ERP customer lookup failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, fmt.Errorf("customer lookup failed: %w", err)
	}

	customer.Name = strings.TrimSpace(customer.Name)
	customer.Email = strings.TrimSpace(email.String)
	customer.Phone = strings.TrimSpace(phone.String)

	c.logger.Debug("ERP customer lookup completed",
		zap.String("code", customer.Code),
		zap.Duration("duration", time.Since(start)),
	)
	return &customer, nil
}

// HealthCheck pings the database and reports pool statistics
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	if !c.IsEnabled() {
		return &HealthStatus{Status: "disabled"}
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHealthCheckTimeout)
		defer cancel()
	}

	start := time.Now()
	err := c.db.PingContext(ctx)
	stats := c.db.Stats()

	status := &HealthStatus{
		Status:    "healthy",
		Latency:   time.Since(start),
		MaxOpen:   stats.MaxOpenConnections,
		Open:      stats.OpenConnections,
		InUse:     stats.InUse,
		Idle:      stats.Idle,
		WaitCount: stats.WaitCount,
	}
	if err != nil {
		c.logger.Warn("ERP health check failed", zap.Error(err))
		status.Status = "unhealthy"
		status.Error = err.Error()
	}
	return status
}

// IsEnabled returns true if the client is initialized and ready for queries
func (c *Client) IsEnabled() bool {
	return c != nil && c.db != nil
}

// Close closes the connection pool
func (c *Client) Close() error {
	if !c.IsEnabled() {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close ERP connection: %w", err)
	}
	c.logger.Info("ERP connection closed")
	return nil
}
