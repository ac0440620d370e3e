package models

// Role is the community role a message is posted under.
type Role string

const (
	RolePatient   Role = "Patient"
	RoleGuardian  Role = "Guardian"
	RoleCaretaker Role = "Care-taker"
)

// Roles lists every role in display order.
var Roles = []Role{RolePatient, RoleGuardian, RoleCaretaker}

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleGuardian, RoleCaretaker:
		return true
	}
	return false
}

// FlagReason is why a user reported a message.
type FlagReason string

const (
	FlagInappropriate FlagReason = "inappropriate"
	FlagSpam          FlagReason = "spam"
	FlagHarassment    FlagReason = "harassment"
	FlagOther         FlagReason = "other"
)

func (r FlagReason) Valid() bool {
	switch r {
	case FlagInappropriate, FlagSpam, FlagHarassment, FlagOther:
		return true
	}
	return false
}
