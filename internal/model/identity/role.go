package identity

// Wildcard grant tokens. A role carrying PermissionWildcard may perform any
// operation; PersonaWildcard opens every persona.
const (
	PermissionWildcard = "*"
	PersonaWildcard    = "*"
)

// Permission tokens checked by the conversation surface.
const (
	PermStartConversation = "conversation:start"
	PermSendMessage       = "conversation:send"
	PermViewConversation  = "conversation:view"
)

// Role is an immutable, process-wide capability bundle.
type Role struct {
	Name          string   `json:"name"`
	Permissions   []string `json:"permissions"`
	PersonaAccess []string `json:"personaAccess"`
	SpendingLimit float64  `json:"spendingLimit"`
}

// SeedRoles returns the five built-in tiers, from unrestricted administrator
// down to read-only guest. Seeded once at startup and never mutated.
func SeedRoles() []Role {
	return []Role{
		{
			Name:          "admin",
			Permissions:   []string{PermissionWildcard},
			PersonaAccess: []string{PersonaWildcard},
			SpendingLimit: 10000,
		},
		{
			Name:          "executive",
			Permissions:   []string{PermStartConversation, PermSendMessage, PermViewConversation},
			PersonaAccess: []string{PersonaWildcard},
			SpendingLimit: 5000,
		},
		{
			Name:          "manager",
			Permissions:   []string{PermStartConversation, PermSendMessage, PermViewConversation},
			PersonaAccess: []string{"cto", "hr_assistant", "it_helpdesk", "company_mascot"},
			SpendingLimit: 1000,
		},
		{
			Name:          "employee",
			Permissions:   []string{PermStartConversation, PermSendMessage, PermViewConversation},
			PersonaAccess: []string{"hr_assistant", "it_helpdesk", "company_mascot"},
			SpendingLimit: 200,
		},
		{
			Name:          "guest",
			Permissions:   []string{PermViewConversation},
			PersonaAccess: []string{"company_mascot"},
			SpendingLimit: 0,
		},
	}
}
