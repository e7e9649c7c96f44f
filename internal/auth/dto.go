package auth

// LoginDTO is the transport shape of POST /api/token/ requests.
type LoginDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse mirrors what the browser client persists: the token plus the
// identity fields it keeps in local storage.
type TokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

// Validate checks required fields and returns a ValidationError on failure.
func (d LoginDTO) Validate() error {
	if d.Username == "" {
		return ValidationError{Msg: "username is required"}
	}
	if d.Password == "" {
		return ValidationError{Msg: "password is required"}
	}
	return nil
}
