package model

import "time"

// Application roles. The set is closed: authorization decisions go
// through the capability table in the middleware package instead of
// comparing role strings at call sites.
const (
	RoleAdmin    = "ADMIN"
	RoleStaff    = "STAFF"
	RoleCustomer = "CUSTOMER"
)

// User represents an application user record as stored in the
// `users` table. Staff and customers share the table and are told
// apart by role. The aggregate columns TotalBookings and
// TotalSpentCents are recomputed whenever one of the customer's
// bookings completes.
//
// Fields:
//  ID              – primary key identifier.
//  Email           – unique email address.
//  PasswordHash    – bcrypt hashed password.
//  Role            – one of the Role* constants.
//  FullName        – display name.
//  Phone           – contact phone number.
//  TotalBookings   – completed bookings for this customer.
//  TotalSpentCents – lifetime amount paid across completed bookings.
//  IsActive        – whether the account is active.
//  CreatedAt       – timestamp of creation.
//  UpdatedAt       – timestamp of last update.
type User struct {
	ID              uint64    // users.id
	Email           string    // users.email
	PasswordHash    string    // users.password_hash
	Role            string    // users.role
	FullName        string    // users.full_name
	Phone           string    // users.phone
	TotalBookings   int64     // users.total_bookings
	TotalSpentCents int64     // users.total_spent_cents
	IsActive        bool      // users.is_active
	CreatedAt       time.Time // users.created_at
	UpdatedAt       time.Time // users.updated_at
}
