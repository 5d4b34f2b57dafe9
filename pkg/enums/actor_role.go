package enums

// ActorRole identifies who performed an action on an order.
type ActorRole string

const (
	ActorRoleCustomer ActorRole = "customer"
	ActorRoleAdmin    ActorRole = "admin"
	ActorRoleSystem   ActorRole = "system"
)

var actorRoles = newValueSet[ActorRole]("actor role",
	ActorRoleCustomer,
	ActorRoleAdmin,
	ActorRoleSystem,
)

func (a ActorRole) String() string {
	return string(a)
}

func (a ActorRole) IsValid() bool {
	return actorRoles.has(a)
}

func ParseActorRole(value string) (ActorRole, error) {
	return actorRoles.parse(value)
}

// IsPrivileged is true for roles allowed to drive admin-only transitions.
func (a ActorRole) IsPrivileged() bool {
	return a == ActorRoleAdmin || a == ActorRoleSystem
}
