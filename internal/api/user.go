package api

import (
	"context"
	"net/http"

	"github.com/franckalain/leafmetric/internal/models"
)

// LoginResult is the outcome of a successful login.
// Token is empty when the server sent no Access-Token header.
type LoginResult struct {
	Token string
	User  models.User
}

// RegisterRequest is the body of the registration call
type RegisterRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Experience int    `json:"experience"`
	Password   string `json:"password"`
}

// Login exchanges credentials for an access token
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := jsonBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	data, header, err := c.send(ctx, call{
		op:       "login",
		fallback: "Login failed",
		method:   http.MethodPost,
		path:     "/api/user/login",
		body:     body,
	})
	if err != nil {
		return nil, err
	}

	result := &LoginResult{Token: header.Get("Access-Token")}
	if err := decodeField("login", data, "user", &result.User); err != nil {
		return nil, err
	}
	return result, nil
}

// Register creates a new account; it does not sign in
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}
	data, _, err := c.send(ctx, call{
		op:       "register",
		fallback: "Registration failed",
		method:   http.MethodPost,
		path:     "/api/user",
		body:     body,
	})
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := decodeField("register", data, "user", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUser fetches the profile of the token owner
func (c *Client) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	data, _, err := c.send(ctx, call{
		op:       "get_user",
		fallback: "Get details failed",
		method:   http.MethodGet,
		path:     "/api/user",
		auth:     true,
		token:    token,
	})
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := decodeField("get_user", data, "user", &user); err != nil {
		return nil, err
	}
	return &user, nil
}
