package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/heraerp/hera-api/pkg/enums"
)

// ErrNoOrganization is returned by Tenant for tokens issued before the user
// picked an organization.
var ErrNoOrganization = errors.New("token carries no organization")

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Role           enums.MemberRole
	JTI            string
}

// AccessTokenClaims is the token issued by the identity provider. The
// organization claim is the tenant every request is scoped to.
type AccessTokenClaims struct {
	UserID         uuid.UUID        `json:"user_id"`
	OrganizationID uuid.UUID        `json:"organization_id"`
	Role           enums.MemberRole `json:"role"`
	jwt.RegisteredClaims
}

// Tenant is the verified identity a request acts as.
type Tenant struct {
	ActorID        uuid.UUID
	OrganizationID uuid.UUID
	Role           enums.MemberRole
}

// Tenant returns the caller's organization binding, or ErrNoOrganization.
func (c *AccessTokenClaims) Tenant() (Tenant, error) {
	t := Tenant{ActorID: c.UserID, OrganizationID: c.OrganizationID, Role: c.Role}
	if c.OrganizationID == uuid.Nil {
		return t, ErrNoOrganization
	}
	return t, nil
}

// Validate runs after the registered claims have been verified.
func (c *AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errors.New("token missing user_id")
	}
	if c.Subject != "" && c.Subject != c.UserID.String() {
		return errors.New("token subject does not match user_id")
	}
	if !c.Role.IsValid() {
		return errors.New("token carries invalid role " + string(c.Role))
	}
	return nil
}
