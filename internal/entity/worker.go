package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Worker task status values.
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
)

// Worker is a shop employee.
type Worker struct {
	bun.BaseModel `bun:"table:workers,alias:w"`

	ID                 int64           `bun:",pk,autoincrement" json:"id"`
	EmployeeCode       string          `bun:"employee_code,unique" json:"employee_code"`
	Name               string          `bun:"name" json:"name"`
	Role               string          `bun:"role" json:"role"`
	Department         string          `bun:"department" json:"department"`
	Specialty          string          `bun:"specialty" json:"specialty"`
	Email              string          `bun:"email" json:"email"`
	Phone              string          `bun:"phone" json:"phone"`
	HireDate           *time.Time      `bun:"hire_date" json:"hire_date,omitempty"`
	HourlyRate         decimal.Decimal `bun:"hourly_rate,type:numeric" json:"hourly_rate"`
	OvertimeRate       decimal.Decimal `bun:"overtime_rate,type:numeric" json:"overtime_rate"`
	StandardHoursDay   int             `bun:"standard_hours_day" json:"standard_hours_day"`
	StandardHoursWeek  int             `bun:"standard_hours_week" json:"standard_hours_week"`
	StandardHoursMonth int             `bun:"standard_hours_month" json:"standard_hours_month"`
	IsActive           bool            `bun:"is_active" json:"is_active"`
	CreatedAt          time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time       `bun:"updated_at,nullzero" json:"updated_at"`
}

// WorkerTask is a unit of work assigned to a worker for one order stage.
type WorkerTask struct {
	bun.BaseModel `bun:"table:worker_tasks,alias:wt"`

	ID          int64      `bun:",pk,autoincrement" json:"id"`
	WorkerID    int64      `bun:"worker_id" json:"worker_id"`
	OrderID     int64      `bun:"order_id" json:"order_id"`
	Stage       string     `bun:"stage" json:"stage"`
	Status      string     `bun:"status" json:"status"`
	StartedAt   *time.Time `bun:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `bun:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

// Attendance is one clock-in/clock-out session.
type Attendance struct {
	bun.BaseModel `bun:"table:attendances"`

	ID         int64      `bun:",pk,autoincrement" json:"id"`
	WorkerCode string     `bun:"worker_code" json:"worker_code"`
	Date       time.Time  `bun:"date,type:date" json:"date"`
	CheckIn    time.Time  `bun:"check_in" json:"check_in"`
	CheckOut   *time.Time `bun:"check_out" json:"check_out,omitempty"`
}

// Open reports whether the session has not been clocked out.
func (a Attendance) Open() bool {
	return a.CheckOut == nil
}

// SyncState persists the progress of a recurring import job.
type SyncState struct {
	bun.BaseModel `bun:"table:sync_states"`

	Job          string     `bun:"job,pk" json:"job"`
	LastSyncedAt *time.Time `bun:"last_synced_at" json:"last_synced_at,omitempty"`
	LastCount    int        `bun:"last_count" json:"last_count"`
	LastError    string     `bun:"last_error" json:"last_error,omitempty"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero" json:"updated_at"`
}
