package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/SmartXchain/piedmont-sub000/internal/config"
	"github.com/SmartXchain/piedmont-sub000/internal/events"
	"github.com/SmartXchain/piedmont-sub000/internal/logger"
	"github.com/SmartXchain/piedmont-sub000/internal/metrics"
	"github.com/SmartXchain/piedmont-sub000/internal/repo"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Now     func() time.Time
	Logger  logger.Logger
	Metrics *metrics.Metrics
}

func New(db *sql.DB, cfg *config.Config) Engine {
	e := Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
		Now:    time.Now,
		Logger: logger.NewNop(),
	}
	e.Events = events.Writer{Now: e.now}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() logger.Logger {
	if e.Logger == nil {
		return logger.NewNop()
	}
	return e.Logger
}

func (e Engine) config() *config.Config {
	if e.Config == nil {
		return config.Default()
	}
	return e.Config
}

// ValidationError reports bad caller input. No state was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StateConflictError reports an operation the current state does not allow.
type StateConflictError struct {
	Message string
}

func (e StateConflictError) Error() string { return e.Message }

func invalid(field, msg string) error {
	return ValidationError{Field: field, Message: msg}
}

func conflict(format string, args ...any) error {
	return StateConflictError{Message: fmt.Sprintf(format, args...)}
}

// notFound wraps repo.ErrNotFound with the missing entity.
func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, repo.ErrNotFound)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// checkStruct runs the validator tags of opts and reports the first failure.
func checkStruct(opts any) error {
	err := validate.Struct(opts)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return invalid(field, "is required")
	case "gt":
		return invalid(field, fmt.Sprintf("must be greater than %s", fe.Param()))
	case "gte", "min":
		return invalid(field, fmt.Sprintf("must be at least %s", fe.Param()))
	case "oneof":
		return invalid(field, fmt.Sprintf("must be one of %s", fe.Param()))
	case "datetime":
		return invalid(field, "must be a YYYY-MM-DD date")
	default:
		return invalid(field, fmt.Sprintf("failed %s check", fe.Tag()))
	}
}

func toSnake(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			if prevLower {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
			prevLower = false
		} else {
			prevLower = true
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isUniqueViolation reports a SQLite UNIQUE or PRIMARY KEY failure on the
// given table.column.
func isUniqueViolation(err error, column string) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Today is the current time in the shop time zone.
func (e Engine) Today() time.Time {
	return e.now().In(e.config().Location())
}
