// Package apicommon provides common types, constants, and helper functions for the API.
package apicommon

// MetadataKey is a type to define the key for the metadata stored in the
// context.
type MetadataKey string

// UserMetadataKey is the key used to store the user in the context.
const UserMetadataKey MetadataKey = "user"

// RoleAdmin is the value of the role claim that grants access to the admin
// routes.
const RoleAdmin = "admin"

// JWT claims read from the tokens issued by the web front.
const (
	ClaimUserID        = "userId"
	ClaimRole          = "role"
	ClaimMinecraftName = "minecraftName"
)
