package shopdb

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so Queries can run inside or
// outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries bundles all database access methods.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Order lifecycle states. Paid, cancelled and timeout-closed are terminal.
const (
	OrderStatusPending       = "pending"
	OrderStatusPaid          = "paid"
	OrderStatusCancelled     = "cancelled"
	OrderStatusTimeoutClosed = "timeout_closed"
)

// Product review states.
const (
	CheckStatePending  = "PENDING"
	CheckStateApproved = "APPROVED"
	CheckStateRejected = "REJECTED"
)

// Product and order item kinds.
const (
	ProductTypePhysical = "PHYSICAL"
	ProductTypeDesign   = "DESIGN"
	ProductTypeVIP      = "VIP"

	ItemTypePhysical = "physical"
	ItemTypeDesign   = "design"
	ItemTypeVIP      = "vip"
)

// Third-party auth channels.
const (
	AuthTypeWechatMiniProgram = "wechat_mini_program"
)

// Job queue states.
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// User is a row in the users table. Admins, designers and shoppers share it.
type User struct {
	ID           int64
	Username     sql.NullString
	PasswordHash sql.NullString
	PasswordSalt sql.NullString
	Nickname     sql.NullString
	Avatar       sql.NullString
	Phone        sql.NullString
	Email        sql.NullString
	State        string
	IsSuperuser  bool
	CreatedAt    int64
	UpdatedAt    int64
}

// UserAuth links a user to a third-party identity (mini-program openid etc.).
type UserAuth struct {
	ID        int64
	UserID    int64
	AuthType  string
	OpenID    sql.NullString
	UnionID   sql.NullString
	CreatedAt int64
}

type Role struct {
	ID          int64
	RoleName    string
	Description sql.NullString
	IsSystem    bool
}

type Token struct {
	ID        int64
	UserID    int64
	TokenHash string
	IssuedAt  int64
	ExpiresAt int64
}

type Category struct {
	ID          int64
	Name        string
	ParentID    sql.NullInt64
	TopParentID sql.NullInt64
}

type Series struct {
	ID          int64
	Name        string
	ParentID    sql.NullInt64
	TopParentID sql.NullInt64
}

type Product struct {
	ID            int64
	Name          string
	Subtitle      sql.NullString
	CoverImage    sql.NullString
	Description   sql.NullString
	DetailHTML    sql.NullString
	CategoryID    int64
	SeriesID      int64
	IsPublished   bool
	CreatorUserID int64
	CheckState    string
	CheckReason   sql.NullString
	CheckerUserID sql.NullInt64
	CheckedAt     sql.NullInt64
	IsDeleted     bool
	Sort          int64
	ProductType   string
	CreatedAt     int64
	UpdatedAt     int64
}

type SKU struct {
	ID                 int64
	ProductID          int64
	Name               string
	PriceCents         int64
	OriginalPriceCents sql.NullInt64
	// Stock of 0 means sold out; -1 means unlimited.
	Stock       int64
	Code        sql.NullString
	IsEnabled   bool
	VipPlanDays sql.NullInt64
	DesignID    sql.NullInt64
}

type ProductSnapshot struct {
	ID           int64
	ProductID    int64
	SnapshotJSON string
	CreatedAt    int64
}

type Order struct {
	ID               int64
	UserID           int64
	Name             string
	Status           string
	TotalAmountCents int64
	PayTime          sql.NullInt64
	ExpireTime       sql.NullInt64
	PaymentType      sql.NullString
	MerchantOrderNo  sql.NullString
	SerialNo         sql.NullString
	Remark           sql.NullString
	CreatedAt        int64
	UpdatedAt        int64
}

type OrderItem struct {
	ID              int64
	OrderID         int64
	ItemType        string
	ProductID       int64
	SkuID           sql.NullInt64
	ProductName     string
	SkuName         sql.NullString
	Quantity        int64
	UnitPriceCents  int64
	TotalPriceCents int64
}

type Payment struct {
	ID              int64
	OrderID         int64
	MerchantOrderNo string
	TransactionID   sql.NullString
	TradeState      string
	AmountCents     int64
	PayerOpenID     sql.NullString
	RawNotify       sql.NullString
	CreatedAt       int64
}

type UserVIP struct {
	ID         int64
	UserID     int64
	ExpireTime int64
	UpdatedAt  int64
}

type UserDesignLicense struct {
	ID        int64
	UserID    int64
	DesignID  int64
	OrderID   int64
	CreatedAt int64
}

type SysConf struct {
	ID        int64
	ConfKey   string
	ConfValue string
	IsPublic  bool
	UpdatedAt int64
}

// Job is a row in the delayed job queue.
type Job struct {
	ID          string
	Kind        string
	Payload     string
	Status      string
	RunAt       int64
	ClaimedAt   sql.NullInt64
	Attempts    int64
	MaxAttempts int64
	LastError   sql.NullString
	CreatedAt   int64
	FinishedAt  sql.NullInt64
}
