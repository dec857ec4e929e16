// internal/tenant/meta/model.go
//
// `schools` table row model.
//
// Context
// -------
// The `Record` struct mirrors one row in the control-plane **schools**
// table: identity (subdomain, code), physical database coordinates, the
// encrypted password of the tenant's database user, and plan limits.  It is
// read by the tenant resolver on cache misses and written by the
// provisioning pipeline and admin tooling.
//
// Schema reference: internal/schema/control/000001_schools.up.sql
//
// Notes
// -----
//   - `Subdomain` and `Code` are unique and never reused, even after
//     deactivation.  Rows are never hard deleted.
//   - `DBPasswordEncrypted` is credential.Box output; nothing in this
//     package decrypts it.
//   - This struct contains no behaviour beyond column bookkeeping.
package meta

import "time"

// Record mirrors one row in the `schools` table.
type Record struct {
	ID                  int64     `db:"id"                    json:"id"`
	Name                string    `db:"name"                  json:"name"`
	Subdomain           string    `db:"subdomain"             json:"subdomain"`
	Code                string    `db:"code"                  json:"code"`
	Email               string    `db:"email"                 json:"email"`
	Phone               string    `db:"phone"                 json:"phone"`
	DBHost              string    `db:"db_host"               json:"db_host"`
	DBPort              int       `db:"db_port"               json:"db_port"`
	DBName              string    `db:"db_name"               json:"db_name"`
	DBUser              string    `db:"db_user"               json:"db_user"`
	DBPasswordEncrypted string    `db:"db_password_encrypted" json:"-"`
	IsActive            bool      `db:"is_active"             json:"is_active"`
	MaxStudents         int       `db:"max_students"          json:"max_students"`
	MaxTeachers         int       `db:"max_teachers"          json:"max_teachers"`
	SubscriptionTier    string    `db:"subscription_tier"     json:"subscription_tier"`
	CreatedAt           time.Time `db:"created_at"            json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"            json:"updated_at"`
}

// columns is the SELECT list matching Record; update both together.
var columns = []string{
	"id", "name", "subdomain", "code", "email", "phone",
	"db_host", "db_port", "db_name", "db_user", "db_password_encrypted",
	"is_active", "max_students", "max_teachers", "subscription_tier",
	"created_at", "updated_at",
}

// Patch carries the mutable fields of a tenant.  Nil means unchanged.
// Identity and database coordinates are deliberately absent.
type Patch struct {
	Name             *string `json:"name,omitempty"              validate:"omitempty,min=1,max=255"`
	Email            *string `json:"email,omitempty"             validate:"omitempty,email"`
	Phone            *string `json:"phone,omitempty"             validate:"omitempty,max=32"`
	MaxStudents      *int    `json:"max_students,omitempty"      validate:"omitempty,min=0"`
	MaxTeachers      *int    `json:"max_teachers,omitempty"      validate:"omitempty,min=0"`
	SubscriptionTier *string `json:"subscription_tier,omitempty" validate:"omitempty,oneof=basic standard premium enterprise"`
	IsActive         *bool   `json:"is_active,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil &&
		p.MaxStudents == nil && p.MaxTeachers == nil &&
		p.SubscriptionTier == nil && p.IsActive == nil
}

// Filter narrows List.
type Filter struct {
	Active *bool
	Limit  uint64
	Offset uint64
}
