// internal/acl/permissions.go
//
// Static permission catalogue and role table.
//
// Context
// -------
// Permission codes are `module.resource.action` strings (two-segment codes
// omit the resource).  Roles map to fixed permission lists at compile time;
// tenants that maintain their own role store start from the same table via
// Seed and may diverge afterwards.
//
// Notes
// -----
//   - `super_admin` is listed with every permission for seeding purposes,
//     but the engine never consults the table for it: the role bypasses
//     checks entirely.
//   - Branch roles carry school-level read access; their data is narrowed
//     to one branch by Scope, not by the permission list.
package acl

// Permission codes.
const (
	StudentsView   = "students.view"
	StudentsCreate = "students.create"
	StudentsEdit   = "students.edit"
	StudentsDelete = "students.delete"
	StudentsExport = "students.export"

	TeachersView   = "teachers.view"
	TeachersCreate = "teachers.create"
	TeachersEdit   = "teachers.edit"
	TeachersDelete = "teachers.delete"

	CoursesView   = "courses.view"
	CoursesCreate = "courses.create"
	CoursesEdit   = "courses.edit"
	CoursesDelete = "courses.delete"

	AttendanceView   = "attendance.view"
	AttendanceMark   = "attendance.mark"
	AttendanceEdit   = "attendance.edit"
	AttendanceReport = "attendance.report"

	MarksView    = "marks.view"
	MarksEnter   = "marks.enter"
	MarksEdit    = "marks.edit"
	MarksPublish = "marks.publish"
	MarksViewAll = "marks.view_all"

	FeesView    = "fees.view"
	FeesCollect = "fees.collect"
	FeesEdit    = "fees.edit"
	FeesWaive   = "fees.waive"
	FeesReport  = "fees.report"

	ReportsAcademic   = "reports.academic"
	ReportsFinancial  = "reports.financial"
	ReportsAttendance = "reports.attendance"

	SchoolSettings = "school.settings"
	UsersManage    = "users.manage"
	RolesManage    = "roles.manage"

	SystemTenantsManage = "system.tenants.manage"
	SystemGlobalAccess  = "system.global_access"
)

// Role names.
const (
	RoleSuperAdmin      = "super_admin"
	RoleSchoolAdmin     = "school_admin"
	RolePrincipal       = "principal"
	RoleBranchAdmin     = "branch_admin"
	RoleBranchPrincipal = "branch_principal"
	RoleTeacher         = "teacher"
	RoleStudent         = "student"
	RoleParent          = "parent"
	RoleAccountant      = "accountant"
	RoleReceptionist    = "receptionist"
)

// AllPermissions lists every code in catalogue order.
var AllPermissions = []string{
	StudentsView, StudentsCreate, StudentsEdit, StudentsDelete, StudentsExport,
	TeachersView, TeachersCreate, TeachersEdit, TeachersDelete,
	CoursesView, CoursesCreate, CoursesEdit, CoursesDelete,
	AttendanceView, AttendanceMark, AttendanceEdit, AttendanceReport,
	MarksView, MarksEnter, MarksEdit, MarksPublish, MarksViewAll,
	FeesView, FeesCollect, FeesEdit, FeesWaive, FeesReport,
	ReportsAcademic, ReportsFinancial, ReportsAttendance,
	SchoolSettings, UsersManage, RolesManage,
	SystemTenantsManage, SystemGlobalAccess,
}

// RolePermissions is the compile-time role table.
var RolePermissions = map[string][]string{
	RoleSuperAdmin: AllPermissions,

	RoleSchoolAdmin: {
		StudentsView, StudentsCreate, StudentsEdit, StudentsDelete, StudentsExport,
		TeachersView, TeachersCreate, TeachersEdit, TeachersDelete,
		CoursesView, CoursesCreate, CoursesEdit, CoursesDelete,
		AttendanceView, AttendanceReport,
		MarksViewAll,
		FeesView, FeesEdit, FeesReport,
		ReportsAcademic, ReportsFinancial, ReportsAttendance,
		SchoolSettings, UsersManage, RolesManage,
	},

	RolePrincipal: {
		StudentsView, StudentsExport,
		TeachersView,
		CoursesView,
		AttendanceView, AttendanceReport,
		MarksViewAll,
		FeesView, FeesReport,
		ReportsAcademic, ReportsFinancial, ReportsAttendance,
	},

	RoleBranchAdmin: {
		StudentsView, StudentsCreate, StudentsEdit, StudentsExport,
		TeachersView, TeachersCreate, TeachersEdit,
		CoursesView, CoursesCreate, CoursesEdit,
		AttendanceView, AttendanceReport,
		MarksViewAll,
		FeesView, FeesReport,
		ReportsAcademic, ReportsAttendance,
	},

	RoleBranchPrincipal: {
		StudentsView,
		TeachersView,
		CoursesView,
		AttendanceView, AttendanceReport,
		MarksViewAll,
		FeesView,
		ReportsAcademic, ReportsAttendance,
	},

	RoleTeacher: {
		StudentsView,
		CoursesView,
		AttendanceView, AttendanceMark, AttendanceEdit,
		MarksView, MarksEnter, MarksEdit,
	},

	RoleStudent: {
		CoursesView,
		AttendanceView,
		MarksView,
		FeesView,
	},

	RoleParent: {
		StudentsView,
		AttendanceView,
		MarksView,
		FeesView,
	},

	RoleAccountant: {
		StudentsView,
		FeesView, FeesCollect, FeesEdit, FeesWaive, FeesReport,
		ReportsFinancial,
	},

	RoleReceptionist: {
		StudentsView, StudentsCreate,
		TeachersView,
		FeesView,
	},
}

// branchRoles are restricted to the principal's assigned branch.
var branchRoles = map[string]struct{}{
	RoleBranchAdmin:     {},
	RoleBranchPrincipal: {},
}

// IsBranchRole reports whether role is branch-scoped.
func IsBranchRole(role string) bool {
	_, ok := branchRoles[role]
	return ok
}

// KnownRole reports whether role appears in the static table.
func KnownRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
