// Package user holds the role vocabulary shared by the user, auth and
// entry packages without creating an import cycle between them.
package user

type Role string

const (
	RoleTreasurer Role = "treasurer"
	RoleMember    Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleTreasurer || r == RoleMember
}

func (r Role) IsTreasurer() bool {
	return r == RoleTreasurer
}

func ParseRole(v string) (Role, bool) {
	r := Role(v)
	return r, r.Valid()
}
