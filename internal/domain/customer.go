package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a stored customer record. Managing customers is handled elsewhere;
// the quote engine only reads them.
type Customer struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	Company   string    `json:"company" db:"company"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// User is an internal staff member, resolved through the auth service.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}
