package models

import "time"

// User represents an identity credential in the auth subsystem
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"` // bcrypt hash (never in JSON)
	SecurityStamp    string    `json:"-"`
	TOTPSecret       string    `json:"-"` // base32, empty when not enrolled
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	RecoveryCodes    []string  `json:"-"`
	ProfileID        *int64    `json:"profileId,omitempty"` // link to movies_users
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// AdministratorRole is the role name carried in tokens and user_roles rows.
const AdministratorRole = "Administrator"

// Profile represents a business-side user record (movies_users).
// The Admin flag is the authoritative source of administrator status.
type Profile struct {
	UserID      int64  `json:"userId"`
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email"`
	Age         int    `json:"age,omitempty"`
	Gender      string `json:"gender,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Zip         string `json:"zip,omitempty"`
	AmazonPrime int    `json:"amazonPrime,omitempty"`
	AppleTV     int    `json:"appleTv,omitempty"`
	Disney      int    `json:"disney,omitempty"`
	Paramount   int    `json:"paramount,omitempty"`
	Admin       int    `json:"admin"` // 0/1
}

// LoginRequest represents login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents registration request payload
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TwoFactorVerifyRequest carries a TOTP (or recovery) code for a pending login
type TwoFactorVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Token             string     `json:"token,omitempty"`
	Expiration        *time.Time `json:"expiration,omitempty"`
	Success           bool       `json:"success"`
	Message           string     `json:"message"`
	RequiresTwoFactor bool       `json:"requiresTwoFactor,omitempty"`
}

// TwoFactorSetupResponse carries enrollment material for an authenticator app
type TwoFactorSetupResponse struct {
	SharedKey        string   `json:"sharedKey"`
	AuthenticatorURI string   `json:"authenticatorUri"`
	RecoveryCodes    []string `json:"recoveryCodes"`
	Success          bool     `json:"success"`
	Message          string   `json:"message"`
}
