package model

import "time"

// User represents an application user record as stored in the `users`
// table.  The booking engine only needs users for ownership of holds and
// bookings; authentication lives at the edge and is intentionally thin.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address, also the ticket delivery address.
//  Name         – display name printed on tickets.
//  PasswordHash – bcrypt hashed password.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Name         string    // users.name
	PasswordHash string    // users.password_hash
	CreatedAt    time.Time // users.created_at
}
