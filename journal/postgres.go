package journal

import (
	"fmt"
	"net/url"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/id"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/strategy"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// PostgresOption describes a PostgreSQL connection. ConnString wins over
// the individual fields.
type PostgresOption struct {
	Host       string            `json:"host" yaml:"host"`
	Port       int               `json:"port" yaml:"port"`
	User       string            `json:"user" yaml:"user"`
	Password   string            `json:"password" yaml:"password"`
	Database   string            `json:"database" yaml:"database"`
	SSLMode    string            `json:"sslmode" yaml:"sslmode"`
	Params     map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	ConnString string            `json:"conn_string,omitempty" yaml:"conn_string,omitempty"`
}

func (opt PostgresOption) dsn() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	for key, value := range opt.Params {
		if key == "" {
			continue
		}
		query.Set(key, value)
	}
	u.RawQuery = query.Encode()
	return u.String()
}

type runRow struct {
	RunID    string     `gorm:"column:run_id;type:varchar(26);primaryKey"`
	Name     string     `gorm:"column:name;not null"`
	Started  time.Time  `gorm:"column:started;not null"`
	Finished *time.Time `gorm:"column:finished"`
}

func (runRow) TableName() string { return "runs" }

type equityRow struct {
	ID            uint      `gorm:"primaryKey"`
	RunID         string    `gorm:"column:run_id;type:varchar(26);index:idx_equity_run_time;not null"`
	Time          time.Time `gorm:"column:time;index:idx_equity_run_time;not null"`
	Currency      string    `gorm:"column:currency;type:varchar(8);not null"`
	Equity        float64   `gorm:"column:equity;not null"`
	Cash          float64   `gorm:"column:cash;not null"`
	UnrealizedPnl float64   `gorm:"column:unrealized_pnl;not null"`
	Positions     int       `gorm:"column:positions;not null"`
	OpenOrders    int       `gorm:"column:open_orders;not null"`
}

func (equityRow) TableName() string { return "equity" }

type fillRow struct {
	ID       uint      `gorm:"primaryKey"`
	RunID    string    `gorm:"column:run_id;type:varchar(26);index:idx_fills_run_time;not null"`
	Time     time.Time `gorm:"column:time;index:idx_fills_run_time;not null"`
	OrderID  int       `gorm:"column:order_id;not null"`
	Asset    string    `gorm:"column:asset;not null"`
	Size     float64   `gorm:"column:size;not null"`
	Price    float64   `gorm:"column:price;not null"`
	PnL      float64   `gorm:"column:pnl;not null"`
	Currency string    `gorm:"column:currency;type:varchar(8);not null"`
	Tag      string    `gorm:"column:tag"`
}

func (fillRow) TableName() string { return "fills" }

func newEquityRow(runID string, e EquityRecord) equityRow {
	return equityRow{
		RunID:         runID,
		Time:          e.Time.UTC(),
		Currency:      e.Currency,
		Equity:        e.Equity,
		Cash:          e.Cash,
		UnrealizedPnl: e.UnrealizedPnl,
		Positions:     e.Positions,
		OpenOrders:    e.OpenOrders,
	}
}

func newFillRow(runID string, f FillRecord) fillRow {
	return fillRow{
		RunID:    runID,
		Time:     f.Time.UTC(),
		OrderID:  f.OrderID,
		Asset:    f.Asset,
		Size:     f.Size,
		Price:    f.Price,
		PnL:      f.PnL,
		Currency: f.Currency,
		Tag:      f.Tag,
	}
}

// PostgresJournal writes runs through gorm. The tables match the sqlite
// schema.
type PostgresJournal struct {
	db    *gorm.DB
	runID string
	cur   cursor
}

func OpenPostgres(opt PostgresOption, name string) (*PostgresJournal, error) {
	db, err := gorm.Open(postgres.Open(opt.dsn()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres journal: %w", err)
	}
	return NewPostgres(db, name)
}

// NewPostgres migrates the tables on db and starts a run.
func NewPostgres(db *gorm.DB, name string) (*PostgresJournal, error) {
	if err := db.AutoMigrate(&runRow{}, &equityRow{}, &fillRow{}); err != nil {
		return nil, fmt.Errorf("postgres journal: migrate: %w", err)
	}
	j := &PostgresJournal{db: db, runID: id.New()}
	run := runRow{RunID: j.runID, Name: name, Started: time.Now().UTC()}
	if err := db.Create(&run).Error; err != nil {
		return nil, fmt.Errorf("postgres journal: create run: %w", err)
	}
	return j, nil
}

func (j *PostgresJournal) RunID() string { return j.runID }

func (j *PostgresJournal) Track(evt *market.Event, snap broker.Snapshot, _ []strategy.Signal, _ []broker.Order) error {
	trades := j.cur.next(snap)
	if len(trades) > 0 {
		rows := make([]fillRow, 0, len(trades))
		for _, t := range trades {
			rows = append(rows, newFillRow(j.runID, fillRecord(t)))
		}
		if err := j.db.Create(&rows).Error; err != nil {
			return fmt.Errorf("postgres journal: fills: %w", err)
		}
	}

	if evt.IsEmpty() {
		return nil
	}
	rec, err := equityRecord(evt, snap)
	if err != nil {
		return fmt.Errorf("postgres journal: %w", err)
	}
	row := newEquityRow(j.runID, rec)
	if err := j.db.Create(&row).Error; err != nil {
		return fmt.Errorf("postgres journal: equity: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Close() error {
	now := time.Now().UTC()
	err := j.db.Model(&runRow{}).Where("run_id = ?", j.runID).Update("finished", &now).Error
	sqlDB, derr := j.db.DB()
	if derr != nil {
		return derr
	}
	if cerr := sqlDB.Close(); err == nil {
		err = cerr
	}
	return err
}
