package user

// SignupInput is the JSON body of POST /signup.
type SignupInput struct {
	Username string `json:"username" binding:"required,min=3,max=50" example:"johndoe"`
	Password string `json:"password" binding:"required,min=6,max=72" example:"password123"`
}

// TokenInput is the OAuth2 password form posted to /token.
type TokenInput struct {
	Username string `form:"username" binding:"required" example:"johndoe"`
	Password string `form:"password" binding:"required" example:"password123"`
}
