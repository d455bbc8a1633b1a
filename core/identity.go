package core

import "fmt"

// Identity is the principal a request runs as. It authors versions and is
// the grantee of tables produced by checkout.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (identity Identity) String() string {
	return fmt.Sprintf("%s <%s>", identity.Name, identity.Email)
}

// Principal is the role name used for access grants.
func (identity Identity) Principal() string {
	if identity.Name != "" {
		return identity.Name
	}
	return identity.Email
}
