package actor

import "time"

// Role classifies what an authenticated identity may do.
type Role string

const (
	RoleConsumer Role = "consumer"
	RoleProducer Role = "producer"
	RoleRecycler Role = "recycler"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is one of the known classes.
func (r Role) Valid() bool {
	switch r {
	case RoleConsumer, RoleProducer, RoleRecycler, RoleAdmin:
		return true
	}
	return false
}

// Actor is an authenticated participant. Identity and role are supplied by
// the external access provider; the ledger only records them.
type Actor struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Wallet    string    `json:"wallet,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
