// internal/provision/request.go
//
// Provisioning input and derived names.
//
// Context
// -------
// A Request is what the control plane submits to create a school: the
// public identity (subdomain, code, name), optional contact fields and
// limits, and where the new database should live (host, port, user, and
// password).  The physical database name is derived, never supplied.
//
// Notes
// -----
// • Subdomains are lower-cased before validation.

package provision

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Request describes one tenant to create.
type Request struct {
	Subdomain string `json:"subdomain" validate:"required,subdomain"`
	Code      string `json:"code"      validate:"required,min=2,max=50,alphanum"`
	Name      string `json:"name"      validate:"required,min=1,max=255"`
	Email     string `json:"email"     validate:"omitempty,email"`
	Phone     string `json:"phone"     validate:"omitempty,max=20"`

	DBHost     string `json:"db_host"     validate:"required,max=255"`
	DBPort     int    `json:"db_port"     validate:"omitempty,min=1,max=65535"`
	DBUser     string `json:"db_user"     validate:"required,max=100"`
	DBPassword string `json:"db_password" validate:"required"`

	MaxStudents      int    `json:"max_students"      validate:"omitempty,min=0"`
	MaxTeachers      int    `json:"max_teachers"      validate:"omitempty,min=0"`
	SubscriptionTier string `json:"subscription_tier" validate:"omitempty,oneof=basic standard premium enterprise"`
}

const dbSuffix = "_db"

// MaxSubdomainLen keeps DatabaseName within the 64-character MySQL
// identifier limit.
const MaxSubdomainLen = 64 - len(dbSuffix)

var subdomainRe = regexp.MustCompile(fmt.Sprintf(`^[a-z0-9][a-z0-9-]{1,%d}$`, MaxSubdomainLen-1))

var validate = func() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("subdomain", func(fl validator.FieldLevel) bool {
		return subdomainRe.MatchString(fl.Field().String())
	})
	return v
}()

// Normalize trims input and fills defaults.
func (r *Request) Normalize() {
	r.Subdomain = strings.ToLower(strings.TrimSpace(r.Subdomain))
	r.Code = strings.TrimSpace(r.Code)
	r.Name = strings.TrimSpace(r.Name)
	r.DBHost = strings.TrimSpace(r.DBHost)
	if r.DBPort == 0 {
		r.DBPort = 3306
	}
	if r.MaxStudents == 0 {
		r.MaxStudents = 1000
	}
	if r.MaxTeachers == 0 {
		r.MaxTeachers = 100
	}
	if r.SubscriptionTier == "" {
		r.SubscriptionTier = "basic"
	}
}

// Validate checks r after Normalize.
func (r *Request) Validate() error {
	return validate.Struct(r)
}

// DatabaseName derives the physical database name for subdomain.
func DatabaseName(subdomain string) string {
	return strings.ReplaceAll(strings.ToLower(subdomain), "-", "_") + dbSuffix
}
