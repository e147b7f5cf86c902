package domain

type Role string

const (
	RoleClient Role = "CLIENT"
	RoleBarber Role = "BARBER"
	RoleAdmin  Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleBarber || r == RoleAdmin
}

// Principal is the authenticated caller attached to every engine operation.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanActOn reports whether p may change an appointment: administrators,
// the owning staff member, or the owning client.
func (p Principal) CanActOn(a Appointment) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleBarber:
		return a.StaffID == p.ID
	case RoleClient:
		return a.ClientID == p.ID
	}
	return false
}
